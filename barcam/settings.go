package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// showSettingsDialog displays the operator settings: the beep toggle, the
// theme, and the save folder. Saving writes the configuration file; the
// session picks the new values up on the next Start.
func showSettingsDialog(state *appState) {
	beepCheck := widget.NewCheck("Enable Beep Sound", nil)
	beepCheck.SetChecked(state.cfg.Settings.BeepEnabled)

	themeSelect := widget.NewSelect([]string{"Dark", "Light"}, nil)
	themeSelect.SetSelected(state.cfg.Settings.Theme)

	folderEntry := widget.NewEntry()
	folderEntry.SetText(state.cfg.Storage.SaveRoot)

	folderBtn := widget.NewButton("Select Save Folder", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			folderEntry.SetText(uri.Path())
		}, state.window)
	})

	form := container.NewVBox(
		beepCheck,
		widget.NewLabel("Theme:"),
		themeSelect,
		widget.NewLabel("Save Folder:"),
		folderEntry,
		folderBtn,
	)

	d := dialog.NewCustomConfirm("Settings", "Save", "Cancel", form, func(save bool) {
		if !save {
			return
		}
		state.cfg.Settings.BeepEnabled = beepCheck.Checked
		state.cfg.Settings.Theme = themeSelect.Selected
		state.cfg.Storage.SaveRoot = folderEntry.Text
		if err := state.cfg.Save(state.cfgPath); err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		dialog.ShowInformation("Settings", "Settings saved successfully!", state.window)
	}, state.window)
	d.Resize(fyne.NewSize(500, 400))
	d.Show()
}
