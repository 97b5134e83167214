package feed

import "github.com/dperrin/gather/internal/model"

// MultiNotifier fans each recorded activity out to every target in order.
type MultiNotifier []Notifier

func (m MultiNotifier) ActivityRecorded(a model.Activity) {
	for _, n := range m {
		if n != nil {
			n.ActivityRecorded(a)
		}
	}
}
