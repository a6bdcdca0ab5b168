// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package windows

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// gridTheme tightens the default theme for dense tables: smaller padding,
// a slate palette and a visible selection colour for checked rows.
type gridTheme struct{}

var _ fyne.Theme = (*gridTheme)(nil)

var (
	lightColors = map[fyne.ThemeColorName]color.Color{
		theme.ColorNameBackground:       color.NRGBA{R: 0xfa, G: 0xfa, B: 0xfb, A: 0xff},
		theme.ColorNameHeaderBackground: color.NRGBA{R: 0xe8, G: 0xeb, B: 0xef, A: 0xff},
		theme.ColorNamePrimary:          color.NRGBA{R: 0x3b, G: 0x5b, B: 0xdb, A: 0xff},
		theme.ColorNameHover:            color.NRGBA{R: 0xdb, G: 0xe4, B: 0xff, A: 0xff},
		theme.ColorNameSelection:        color.NRGBA{R: 0xc5, G: 0xd4, B: 0xff, A: 0xff},
		theme.ColorNameForeground:       color.NRGBA{R: 0x1f, G: 0x23, B: 0x28, A: 0xff},
		theme.ColorNameSeparator:        color.NRGBA{R: 0xd0, G: 0xd5, B: 0xdb, A: 0xff},
	}
	darkColors = map[fyne.ThemeColorName]color.Color{
		theme.ColorNameBackground:       color.NRGBA{R: 0x17, G: 0x1a, B: 0x1f, A: 0xff},
		theme.ColorNameHeaderBackground: color.NRGBA{R: 0x24, G: 0x29, B: 0x31, A: 0xff},
		theme.ColorNamePrimary:          color.NRGBA{R: 0x74, G: 0x8f, B: 0xfc, A: 0xff},
		theme.ColorNameHover:            color.NRGBA{R: 0x2c, G: 0x35, B: 0x4f, A: 0xff},
		theme.ColorNameSelection:        color.NRGBA{R: 0x36, G: 0x4f, B: 0xc7, A: 0xff},
		theme.ColorNameForeground:       color.NRGBA{R: 0xe4, G: 0xe7, B: 0xeb, A: 0xff},
		theme.ColorNameSeparator:        color.NRGBA{R: 0x37, G: 0x3d, B: 0x47, A: 0xff},
	}
	sizes = map[fyne.ThemeSizeName]float32{
		theme.SizeNamePadding:            4,
		theme.SizeNameInnerPadding:       6,
		theme.SizeNameInlineIcon:         18,
		theme.SizeNameScrollBar:          10,
		theme.SizeNameSeparatorThickness: 1,
	}
)

func (gridTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	palette := lightColors
	if variant == theme.VariantDark {
		palette = darkColors
	}
	if c, ok := palette[name]; ok {
		return c
	}
	return theme.DefaultTheme().Color(name, variant)
}

func (gridTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (gridTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (gridTheme) Size(name fyne.ThemeSizeName) float32 {
	if s, ok := sizes[name]; ok {
		return s
	}
	return theme.DefaultTheme().Size(name)
}
