// SPDX-License-Identifier: MIT

package stream

import "time"

// Observer receives lifecycle hooks from an Orchestrator. The orchestrator
// never depends on an observer for control flow; hooks are notification
// only. Embed NopObserver to implement a subset.
type Observer interface {
	OnStreamStart(id string)
	OnStreamEnd(id string, duration time.Duration, success bool, err error)
	OnUpdateSent(id string, phase string, bytes int)
	OnHeartbeat(id string)
	OnError(id string, err error)
	OnAbort(id string, reason string)
}

// NopObserver implements Observer with no-ops, making partial observers
// safe.
type NopObserver struct{}

func (NopObserver) OnStreamStart(string)                            {}
func (NopObserver) OnStreamEnd(string, time.Duration, bool, error)  {}
func (NopObserver) OnUpdateSent(string, string, int)                {}
func (NopObserver) OnHeartbeat(string)                              {}
func (NopObserver) OnError(string, error)                           {}
func (NopObserver) OnAbort(string, string)                          {}
