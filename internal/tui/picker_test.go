package tui

import (
	"errors"
	"strings"
	"testing"

	"dbmeter/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []audio.Device{
	{ID: 1, Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000},
	{ID: 3, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000},
}

func newTestPicker(t *testing.T) DevicePickerModel {
	t.Helper()
	m := NewDevicePickerModel()
	m.fetch = func() ([]audio.Device, error) { return testDevices, nil }

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	model, _ = model.Update(m.Init()())
	return model.(DevicePickerModel)
}

func press(m DevicePickerModel, keys ...string) (DevicePickerModel, tea.Cmd) {
	var cmd tea.Cmd
	var model tea.Model = m
	for _, k := range keys {
		model, cmd = model.Update(keyMsg(k))
	}
	return model.(DevicePickerModel), cmd
}

func TestPickerListsDevices(t *testing.T) {
	m := newTestPicker(t)
	view := m.View()
	for _, want := range []string{"Capture Devices", "[1] Built-in Microphone (Input)", "[3] USB Interface (Input/Output)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestPickerSelectsDeviceAndRate(t *testing.T) {
	m := newTestPicker(t)

	m, _ = press(m, "down", "enter")
	if m.activeScreen != ConfigScreen {
		t.Fatal("enter should open the configuration screen")
	}
	if SampleRates[m.sampleRateIndex] != 96000 {
		t.Errorf("default rate = %v, want device default 96000", SampleRates[m.sampleRateIndex])
	}

	m, cmd := press(m, "up", "enter")
	if cmd == nil {
		t.Error("confirming should quit the picker")
	}
	sel, ok := m.Selection()
	if !ok {
		t.Fatal("expected a selection")
	}
	if sel.DeviceID != 3 || sel.SampleRate != 88200 {
		t.Errorf("Selection = %+v", sel)
	}
}

func TestPickerBackAndQuit(t *testing.T) {
	m := newTestPicker(t)
	m, _ = press(m, "enter", "esc")
	if m.activeScreen != ListScreen {
		t.Error("esc should return to the list")
	}

	m, cmd := press(m, "q")
	if cmd == nil {
		t.Error("q should quit")
	}
	if _, ok := m.Selection(); ok {
		t.Error("quitting must not produce a selection")
	}
}

func TestPickerFetchError(t *testing.T) {
	m := NewDevicePickerModel()
	m.fetch = func() ([]audio.Device, error) { return nil, errors.New("PortAudio not initialized") }

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	model, _ = model.Update(m.Init()())
	if !strings.Contains(model.View(), "PortAudio not initialized") {
		t.Errorf("view = %s", model.View())
	}
}
