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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Extensions accepted by the viewer's open dialog.
var (
	dataExtensions       = []string{".csv", ".tsv", ".parquet", ".json"}
	definitionExtensions = []string{".yaml", ".yml"}
	profileExtensions    = []string{".share", ".json", ".txt"}
)

// OpenDialog browses the local file system and returns the path of the
// chosen file. Only directories and files with one of the extensions are
// listed.
type OpenDialog struct {
	dialog      dialog.Dialog
	window      fyne.Window
	title       string
	extensions  []string
	callback    func(path string, err error)
	fileList    *widget.List
	files       []string
	homeDir     string
	currentPath string
	pathLabel   *widget.Label
}

// NewOpenDialog returns a dialog starting in the user's home directory.
func NewOpenDialog(w fyne.Window, title string, extensions []string, callback func(string, error)) *OpenDialog {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &OpenDialog{
		window:      w,
		title:       title,
		extensions:  extensions,
		callback:    callback,
		homeDir:     homeDir,
		currentPath: homeDir,
	}
}

// Show displays the dialog.
func (od *OpenDialog) Show() {
	od.pathLabel = widget.NewLabel(od.currentPath)
	od.pathLabel.Truncation = fyne.TextTruncateEllipsis
	od.pathLabel.TextStyle = fyne.TextStyle{Bold: true}

	od.fileList = widget.NewList(
		func() int { return len(od.files) },
		func() fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(theme.DocumentIcon()), widget.NewLabel("template"))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			box := obj.(*fyne.Container)
			name := od.files[id]
			box.Objects[1].(*widget.Label).SetText(name)
			icon := box.Objects[0].(*widget.Icon)
			if strings.HasSuffix(name, string(filepath.Separator)) {
				icon.SetResource(theme.FolderIcon())
			} else {
				icon.SetResource(theme.FileIcon())
			}
		},
	)

	od.fileList.OnSelected = func(id widget.ListItemID) {
		name := od.files[id]
		if dir := strings.TrimSuffix(name, string(filepath.Separator)); dir != name {
			od.currentPath = filepath.Join(od.currentPath, dir)
			od.loadDirectory()
			od.fileList.UnselectAll()
			return
		}
		od.dialog.Hide()
		od.callback(filepath.Join(od.currentPath, name), nil)
	}

	homeButton := widget.NewButtonWithIcon("Home", theme.HomeIcon(), func() {
		od.currentPath = od.homeDir
		od.loadDirectory()
	})
	upButton := widget.NewButtonWithIcon("Up", theme.NavigateBackIcon(), func() {
		if parent := filepath.Dir(od.currentPath); parent != od.currentPath {
			od.currentPath = parent
			od.loadDirectory()
		}
	})
	refreshButton := widget.NewButtonWithIcon("Refresh", theme.ViewRefreshIcon(), od.loadDirectory)

	filterInfo := widget.NewLabel("Showing: " + strings.Join(od.extensions, ", ") + " and directories")
	filterInfo.TextStyle = fyne.TextStyle{Italic: true}

	navToolbar := container.NewBorder(nil, nil,
		container.NewHBox(homeButton, upButton, refreshButton), nil,
		od.pathLabel,
	)
	content := container.NewBorder(
		container.NewVBox(navToolbar, widget.NewSeparator(), filterInfo),
		nil, nil, nil,
		od.fileList,
	)

	od.dialog = dialog.NewCustom(od.title, "Close", content, od.window)
	od.dialog.Resize(fyne.NewSize(800, 600))
	od.loadDirectory()
	od.dialog.Show()
}

func (od *OpenDialog) loadDirectory() {
	files, err := listDirectory(od.currentPath, od.extensions)
	if err != nil {
		dialog.ShowError(err, od.window)
		return
	}
	od.files = files
	od.pathLabel.SetText(od.currentPath)
	od.fileList.Refresh()
}

// listDirectory returns the visible subdirectories of dir, each with a
// trailing separator, followed by the files matching extensions.
func listDirectory(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dirs, files []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, name+string(filepath.Separator))
			continue
		}
		if hasExtension(name, extensions) {
			files = append(files, name)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return append(dirs, files...), nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
