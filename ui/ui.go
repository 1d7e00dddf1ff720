// Package ui is the desktop front end: one window with the connection
// controls, the sequence parameters, start/stop, and the live speed
// readbacks.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	log "github.com/sirupsen/logrus"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/channel"
	"github.com/calvinmclean/motorseq/controller"
)

// form holds the window state persisted between launches. Values are kept
// as entry text and parsed on use, so a half-typed number never breaks the
// bindings.
type form struct {
	SerialPort     string
	DefinitionFile string
	Speed          string
	Scale          string
	RunTime        string
	StopTime       string
	Cycles         string
}

type MotorUI struct {
	app    fyne.App
	window fyne.Window
	cfg    controller.Config
	opener channel.Opener

	form form

	// session is nil while disconnected. It is only touched from the fyne
	// event thread: button handlers directly, watchSession via fyne.Do.
	session   *controller.Session
	lastRunID string

	portSelect  *widget.Select
	connectBtn  *widget.Button
	startBtn    *widget.Button
	stopBtn     *widget.Button
	statusLabel *widget.Label
	measLabel   *widget.Label
	cmdLabel    *widget.Label
	runTimer    *timer
}

func New(cfg controller.Config, opener channel.Opener) *MotorUI {
	return &MotorUI{
		app:    app.NewWithID("com.github.calvinmclean.motorseq"),
		cfg:    cfg,
		opener: opener,
	}
}

func (ui *MotorUI) Run(ctx context.Context) {
	ui.window = ui.app.NewWindow("Motor Sequencer")

	ui.loadFormFromPreferences()

	ui.statusLabel = widget.NewLabel("Disconnected")
	ui.measLabel = widget.NewLabel("-")
	ui.cmdLabel = widget.NewLabel("-")

	ui.startBtn = widget.NewButton("START", ui.startSequence)
	ui.startBtn.Importance = widget.HighImportance
	ui.startBtn.Disable()

	ui.stopBtn = widget.NewButton("STOP", ui.stopSequence)
	ui.stopBtn.Importance = widget.DangerImportance
	ui.stopBtn.Disable()

	ui.runTimer = newTimer()
	ui.runTimer.Go()

	content := container.NewVBox(
		ui.buildConnectCard(),
		ui.buildParamsCard(),
		container.NewHBox(layout.NewSpacer(), ui.startBtn, ui.stopBtn, layout.NewSpacer()),
		container.NewHBox(ui.statusLabel, layout.NewSpacer(), container.NewPadded(ui.runTimer.text)),
		widget.NewCard("Readback", "", container.NewVBox(
			container.NewGridWithColumns(2,
				widget.NewLabel("Measured speed:"),
				ui.measLabel,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Command speed:"),
				ui.cmdLabel,
			),
		)),
	)

	ui.window.SetCloseIntercept(func() {
		ui.disconnect()
		ui.window.Close()
	})

	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			ui.disconnect()
			ui.app.Quit()
		})
	}()

	ui.window.SetContent(content)
	ui.window.Resize(fyne.NewSize(420, 560))
	ui.window.ShowAndRun()

	ui.runTimer.Stop()
}

func (ui *MotorUI) buildConnectCard() fyne.CanvasObject {
	ports := ui.listPorts()
	ui.portSelect = widget.NewSelect(ports, nil)
	if ui.form.SerialPort == "" {
		ui.form.SerialPort = ports[0]
	}
	ui.portSelect.Bind(binding.BindString(&ui.form.SerialPort))

	refreshBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		ui.portSelect.Options = ui.listPorts()
		ui.portSelect.Refresh()
	})

	definitionEntry := widget.NewEntry()
	definitionEntry.Bind(binding.BindString(&ui.form.DefinitionFile))

	browseBtn := widget.NewButton("Browse", func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			defer rc.Close()
			definitionEntry.SetText(rc.URI().Path())
		}, ui.window)
		d.SetFilter(storage.NewExtensionFileFilter([]string{".elf"}))
		d.Show()
	})

	ui.connectBtn = widget.NewButton("Connect", ui.toggleConnection)

	return widget.NewCard("Connection", "", container.NewVBox(
		container.NewBorder(nil, nil, widget.NewLabel("Serial port:"), refreshBtn, ui.portSelect),
		container.NewBorder(nil, nil, widget.NewLabel("Definition file:"), browseBtn, definitionEntry),
		ui.connectBtn,
	))
}

func (ui *MotorUI) buildParamsCard() fyne.CanvasObject {
	speedEntry := widget.NewEntry()
	speedEntry.Bind(binding.BindString(&ui.form.Speed))

	scaleEntry := widget.NewEntry()
	scaleEntry.Bind(binding.BindString(&ui.form.Scale))

	runTimeEntry := widget.NewEntry()
	runTimeEntry.Bind(binding.BindString(&ui.form.RunTime))

	stopTimeEntry := widget.NewEntry()
	stopTimeEntry.Bind(binding.BindString(&ui.form.StopTime))

	cyclesEntry := widget.NewEntry()
	cyclesEntry.Bind(binding.BindString(&ui.form.Cycles))

	return widget.NewCard("Sequence", "", container.NewVBox(
		container.NewGridWithColumns(2,
			widget.NewLabel("Speed (RPM):"),
			speedEntry,
		),
		container.NewGridWithColumns(2,
			widget.NewLabel("Scale (RPM/count):"),
			scaleEntry,
		),
		container.NewGridWithColumns(2,
			widget.NewLabel("Run time (s):"),
			runTimeEntry,
		),
		container.NewGridWithColumns(2,
			widget.NewLabel("Stop time (s):"),
			stopTimeEntry,
		),
		container.NewGridWithColumns(2,
			widget.NewLabel("Cycles:"),
			cyclesEntry,
		),
	))
}

// listPorts returns the selectable ports, always ending with the NONE
// placeholder so simulator runs need no hardware plugged in.
func (ui *MotorUI) listPorts() []string {
	ports, err := controller.GetSerialPorts()
	if err != nil && !errors.Is(err, controller.ErrNoUSBSerial) {
		log.Errorf("error listing serial ports: %v", err)
	}
	return append(ports, controller.SerialPortNone)
}

func (ui *MotorUI) loadFormFromPreferences() {
	prefs := ui.app.Preferences()
	ui.form.SerialPort = prefs.StringWithFallback("serialPort", ui.cfg.SerialPort)
	ui.form.DefinitionFile = prefs.StringWithFallback("definitionFile", ui.cfg.DefinitionFile)
	ui.form.Speed = prefs.StringWithFallback("speed", fmt.Sprintf("%g", float64(controller.DefaultTargetRPM)))
	ui.form.Scale = prefs.StringWithFallback("scale", fmt.Sprintf("%g", controller.DefaultScale))
	ui.form.RunTime = prefs.StringWithFallback("runTime", fmt.Sprintf("%g", controller.DefaultRunTime.Seconds()))
	ui.form.StopTime = prefs.StringWithFallback("stopTime", fmt.Sprintf("%g", controller.DefaultStopTime.Seconds()))
	ui.form.Cycles = prefs.StringWithFallback("cycles", strconv.Itoa(controller.DefaultCycles))
}

func (ui *MotorUI) saveFormToPreferences() {
	prefs := ui.app.Preferences()
	prefs.SetString("serialPort", ui.form.SerialPort)
	prefs.SetString("definitionFile", ui.form.DefinitionFile)
	prefs.SetString("speed", ui.form.Speed)
	prefs.SetString("scale", ui.form.Scale)
	prefs.SetString("runTime", ui.form.RunTime)
	prefs.SetString("stopTime", ui.form.StopTime)
	prefs.SetString("cycles", ui.form.Cycles)
}

func (ui *MotorUI) toggleConnection() {
	if ui.session != nil {
		ui.disconnect()
		return
	}
	ui.connect()
}

// validateConnectForm applies the connect rules: a port must be chosen and
// the definition file must exist. Simulator mode skips both since the
// loopback ignores them.
func (ui *MotorUI) validateConnectForm() error {
	if ui.cfg.Sim {
		return nil
	}
	if ui.form.SerialPort == "" || ui.form.SerialPort == controller.SerialPortNone {
		return errors.New("choose a serial port")
	}
	if ui.form.DefinitionFile == "" {
		return errors.New("choose a definition (ELF) file")
	}
	if _, err := os.Stat(ui.form.DefinitionFile); err != nil {
		return fmt.Errorf("definition file: %w", err)
	}
	return nil
}

func (ui *MotorUI) connect() {
	if err := ui.validateConnectForm(); err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	ui.saveFormToPreferences()

	ctx := context.Background()

	ch, err := ui.opener.Open(ctx, ui.form.SerialPort, ui.form.DefinitionFile)
	if err != nil {
		dialog.ShowError(fmt.Errorf("error connecting: %w", err), ui.window)
		return
	}

	cfg := ui.cfg
	cfg.SerialPort = ui.form.SerialPort
	cfg.DefinitionFile = ui.form.DefinitionFile

	session, err := controller.NewSession(ctx, ch, cfg)
	if err != nil {
		_ = ch.Close()
		dialog.ShowError(fmt.Errorf("error connecting: %w", err), ui.window)
		return
	}

	ui.session = session
	go ui.watchSession(session)

	target := ui.form.SerialPort
	if ui.cfg.Sim {
		target = "simulator"
	}

	ui.connectBtn.SetText("Disconnect")
	ui.startBtn.Enable()
	ui.statusLabel.SetText(fmt.Sprintf("Connected (%s)", target))
}

func (ui *MotorUI) disconnect() {
	if ui.session == nil {
		return
	}

	if err := ui.session.Close(); err != nil {
		log.Errorf("error closing session: %v", err)
	}
	ui.session = nil

	ui.connectBtn.SetText("Connect")
	ui.startBtn.Disable()
	ui.stopBtn.Disable()
	ui.runTimer.Pause()
	ui.statusLabel.SetText("Disconnected")
	ui.measLabel.SetText("-")
	ui.cmdLabel.SetText("-")
}

// parseParams converts the form entries into SequenceParams. Each field
// reports its own parse failure so the dialog names the entry to fix.
func (ui *MotorUI) parseParams() (controller.SequenceParams, error) {
	speed, err := strconv.ParseFloat(strings.TrimSpace(ui.form.Speed), 64)
	if err != nil {
		return controller.SequenceParams{}, fmt.Errorf("speed: %w", err)
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(ui.form.Scale), 64)
	if err != nil {
		return controller.SequenceParams{}, fmt.Errorf("scale: %w", err)
	}
	runSecs, err := strconv.ParseFloat(strings.TrimSpace(ui.form.RunTime), 64)
	if err != nil {
		return controller.SequenceParams{}, fmt.Errorf("run time: %w", err)
	}
	stopSecs, err := strconv.ParseFloat(strings.TrimSpace(ui.form.StopTime), 64)
	if err != nil {
		return controller.SequenceParams{}, fmt.Errorf("stop time: %w", err)
	}
	cycles, err := strconv.Atoi(strings.TrimSpace(ui.form.Cycles))
	if err != nil {
		return controller.SequenceParams{}, fmt.Errorf("cycles: %w", err)
	}

	return controller.SequenceParams{
		TargetRPM: speed,
		Scale:     scale,
		RunTime:   time.Duration(runSecs * float64(time.Second)),
		StopTime:  time.Duration(stopSecs * float64(time.Second)),
		Cycles:    cycles,
	}, nil
}

func (ui *MotorUI) startSequence() {
	if ui.session == nil {
		return
	}

	params, err := ui.parseParams()
	if err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	ui.saveFormToPreferences()

	if err := ui.session.Sequencer.Start(context.Background(), params); err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	ui.session.Poller.SetScale(params.Scale)
}

func (ui *MotorUI) stopSequence() {
	if ui.session == nil {
		return
	}
	ui.session.Sequencer.Cancel()
}

// watchSession feeds sequencer status and poller samples into the widgets
// until the session is torn down.
func (ui *MotorUI) watchSession(session *controller.Session) {
	updates := session.Sequencer.Updates()
	samples := session.Poller.Samples()

	for {
		select {
		case st := <-updates:
			fyne.Do(func() { ui.applyStatus(st) })
		case sample := <-samples:
			fyne.Do(func() { ui.applySample(sample) })
		case <-session.Done():
			return
		}
	}
}

func (ui *MotorUI) applyStatus(st controller.Status) {
	ui.statusLabel.SetText(st.String())

	switch {
	case st.State == motorseq.StateRunning:
		if st.RunID != ui.lastRunID {
			ui.lastRunID = st.RunID
			ui.runTimer.Start(time.Now())
		}
		ui.startBtn.Disable()
		ui.stopBtn.Enable()
	case st.State == motorseq.StateStopping:
		ui.stopBtn.Disable()
	case st.State.Terminal():
		ui.stopBtn.Disable()
		ui.runTimer.Pause()
		if ui.session != nil {
			ui.startBtn.Enable()
		}
	}
}

func (ui *MotorUI) applySample(sample controller.Sample) {
	ui.measLabel.SetText(sample.MeasuredString())
	ui.cmdLabel.SetText(sample.CommandString())
}
