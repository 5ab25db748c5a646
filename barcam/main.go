package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/ha55an123/Barcam-Backup/pkg/camera"
	"github.com/ha55an123/Barcam-Backup/pkg/config"
	"github.com/ha55an123/Barcam-Backup/pkg/decode"
	"github.com/ha55an123/Barcam-Backup/pkg/notify"
	"github.com/ha55an123/Barcam-Backup/pkg/scanlog"
	"github.com/ha55an123/Barcam-Backup/pkg/session"
)

const noSerialOption = "None"

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a mocked camera instead of real hardware")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	application := app.NewWithID("com.ha55an123.barcam")

	window := application.NewWindow("Barcode Inspector")
	window.Resize(fyne.NewSize(1300, 800))
	window.CenterOnScreen()

	sess := session.New(decode.Multi{decode.NewZXing()})
	sess.SetDisplaySize(cfg.Display.Width, cfg.Display.Height)

	state := &appState{
		cfg:        cfg,
		cfgPath:    *configFlag,
		session:    sess,
		window:     window,
		useMock:    *mockFlag,
		feed:       canvas.NewImageFromImage(nil),
		barcodeLbl: widget.NewLabel("Current Barcode: None"),
		countLbl:   widget.NewLabel("Unique SKUs Scanned: 0"),
		statusLbl:  widget.NewLabel("Status: Not Connected"),
	}
	state.feed.FillMode = canvas.ImageFillContain
	state.feed.SetMinSize(fyne.NewSize(640, 480))

	registerCallbacks(state)

	window.SetContent(buildContent(state))
	window.SetOnClosed(func() {
		sess.Stop()
	})
	window.ShowAndRun()
}

// appState holds the shell's widgets and the running session.
type appState struct {
	cfg     *config.Config
	cfgPath string
	session *session.Session
	window  fyne.Window
	useMock bool

	serialCombo *widget.Select
	cameraCombo *widget.Select
	orderEntry  *widget.Entry

	feed       *canvas.Image
	barcodeLbl *widget.Label
	countLbl   *widget.Label
	statusLbl  *widget.Label

	table  *widget.Table
	rowsMu sync.Mutex
	rows   [][2]string
}

// registerCallbacks wires session events into the widgets. Session
// callbacks arrive off the UI thread, so every update goes through
// fyne.Do.
func registerCallbacks(state *appState) {
	state.session.OnFrame(func(img image.Image) {
		fyne.Do(func() {
			state.feed.Image = img
			state.feed.Refresh()
		})
	})
	state.session.OnStatus(func(text string) {
		fyne.Do(func() {
			state.statusLbl.SetText("Status: " + text)
		})
	})
	state.session.OnScan(func(rec scanlog.Record) {
		state.rowsMu.Lock()
		state.rows = append(state.rows, [2]string{rec.Timestamp, rec.SKU})
		state.rowsMu.Unlock()
		count := state.session.Count()
		fyne.Do(func() {
			state.barcodeLbl.SetText("Current Barcode: " + rec.SKU)
			state.countLbl.SetText(fmt.Sprintf("Unique SKUs Scanned: %d", count))
			state.table.Refresh()
		})
	})
	state.session.OnError(func(err error) {
		fyne.Do(func() {
			dialog.ShowError(err, state.window)
		})
	})
}

// buildContent assembles the scanner view: feed on the left, controls on
// the right, scan table below.
func buildContent(state *appState) fyne.CanvasObject {
	state.serialCombo = widget.NewSelect(serialOptions(), nil)
	state.serialCombo.SetSelected(noSerialOption)

	state.cameraCombo = widget.NewSelect(cameraOptions(state), nil)
	if len(state.cameraCombo.Options) > 0 {
		state.cameraCombo.SetSelectedIndex(0)
	}

	state.orderEntry = widget.NewEntry()
	state.orderEntry.SetPlaceHolder("Enter Order Number")
	state.orderEntry.SetText(state.cfg.Storage.Order)

	startBtn := widget.NewButton("Start Camera", func() { handleStart(state) })
	stopBtn := widget.NewButton("Stop Camera", func() { state.session.Stop() })
	snapshotBtn := widget.NewButton("Capture Snapshot", func() { handleSnapshot(state) })
	clearBtn := widget.NewButton("Clear Session", func() { handleClear(state) })
	settingsBtn := widget.NewButton("Settings", func() { showSettingsDialog(state) })

	state.table = widget.NewTable(
		func() (int, int) {
			state.rowsMu.Lock()
			defer state.rowsMu.Unlock()
			return len(state.rows), 2
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("0000-00-00 00:00:00")
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			state.rowsMu.Lock()
			defer state.rowsMu.Unlock()
			if id.Row >= len(state.rows) {
				return
			}
			obj.(*widget.Label).SetText(state.rows[id.Row][id.Col])
		},
	)

	controls := container.NewVBox(
		widget.NewLabel("Select Serial Port:"),
		state.serialCombo,
		widget.NewLabel("Select Camera Index:"),
		state.cameraCombo,
		widget.NewLabel("Order Number:"),
		state.orderEntry,
		startBtn,
		stopBtn,
		snapshotBtn,
		clearBtn,
		settingsBtn,
		state.barcodeLbl,
		state.countLbl,
		state.statusLbl,
	)

	top := container.NewBorder(nil, nil, nil, controls, state.feed)
	return container.NewBorder(top, nil, nil, nil, state.table)
}

// serialOptions lists the available ports with "None" first.
func serialOptions() []string {
	options := []string{noSerialOption}
	ports, err := notify.Ports()
	if err != nil {
		log.Printf("Failed to list serial ports: %v", err)
		return options
	}
	return append(options, ports...)
}

// cameraOptions probes for cameras and updates the status line. Index 0 is
// offered even when nothing is auto-detected so the operator can still try.
func cameraOptions(state *appState) []string {
	if state.useMock {
		return []string{"0"}
	}
	resolver := camera.NewResolver(state.cfg.Camera.FrameWidth, state.cfg.Camera.FrameHeight)
	found := resolver.Detect(state.cfg.Camera.MaxScan)
	if len(found) == 0 {
		state.statusLbl.SetText("Status: No cameras auto-detected (try index 0)")
		return []string{"0"}
	}
	state.statusLbl.SetText(fmt.Sprintf("Status: %d camera(s) found", len(found)))
	options := make([]string, 0, len(found))
	for _, index := range found {
		options = append(options, strconv.Itoa(index))
	}
	return options
}

// handleStart builds the start options from the saved configuration plus
// the operator's selections and starts the session.
func handleStart(state *appState) {
	opts := session.OptionsFromConfig(state.cfg)
	opts.Order = state.orderEntry.Text

	opts.SerialPort = ""
	if sel := state.serialCombo.Selected; sel != "" && sel != noSerialOption {
		opts.SerialPort = sel
	}

	opts.CameraIndex = -1
	if sel := state.cameraCombo.Selected; sel != "" {
		if index, err := strconv.Atoi(sel); err == nil {
			opts.CameraIndex = index
		}
	}

	if state.useMock {
		opts.Device = camera.NewMock(state.cfg.Camera.FrameWidth, state.cfg.Camera.FrameHeight)
	}

	if err := state.session.Start(opts); err != nil {
		dialog.ShowError(err, state.window)
		state.statusLbl.SetText("Status: Camera open failed")
	}
}

func handleSnapshot(state *appState) {
	if _, err := state.session.Snapshot(); err != nil {
		dialog.ShowError(err, state.window)
	}
}

func handleClear(state *appState) {
	state.session.ClearSession()
	state.rowsMu.Lock()
	state.rows = nil
	state.rowsMu.Unlock()
	state.barcodeLbl.SetText("Current Barcode: None")
	state.countLbl.SetText("Unique SKUs Scanned: 0")
	state.table.Refresh()
	dialog.ShowInformation("Session", "Session cleared successfully!", state.window)
}
