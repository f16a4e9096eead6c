package display

import (
	"github.com/chelnak/ysmrr"
)

// Progress shows that a slow operation is running.
type Progress interface {
	Start(message string)
	Done()
	Fail()
}

// NewProgress returns a spinner when interactive is set and a no-op
// otherwise, so piped output stays clean.
func NewProgress(interactive bool) Progress {
	if !interactive {
		return quietProgress{}
	}
	return &spinnerProgress{}
}

type quietProgress struct{}

func (quietProgress) Start(string) {}
func (quietProgress) Done()        {}
func (quietProgress) Fail()        {}

type spinnerProgress struct {
	manager ysmrr.SpinnerManager
	spinner *ysmrr.Spinner
}

func (p *spinnerProgress) Start(message string) {
	p.manager = ysmrr.NewSpinnerManager()
	p.spinner = p.manager.AddSpinner(message)
	p.manager.Start()
}

func (p *spinnerProgress) Done() {
	p.stop(true)
}

func (p *spinnerProgress) Fail() {
	p.stop(false)
}

func (p *spinnerProgress) stop(ok bool) {
	if p.manager == nil {
		return
	}
	if ok {
		p.spinner.Complete()
	} else {
		p.spinner.Error()
	}
	p.manager.Stop()
	p.manager = nil
}
