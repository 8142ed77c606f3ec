package stream

import (
	"cmp"
	"slices"

	"github.com/overmark/overmark/internal/controller"
	"github.com/overmark/overmark/internal/engine"
	"github.com/overmark/overmark/pkg/core"
	"github.com/overmark/overmark/pkg/streaming"
)

// BuildFrame collects the enabled elements of the given controllers, the
// elements of their enabled layouts valid in territory and the active
// freezes into a frame payload. Elements are copied so the payload does not
// change when scripts mutate them later.
func BuildFrame(now int64, territory uint32, ctrls []*controller.Controller, freezes []*core.FreezeInfo) streaming.FramePayload {
	frame := streaming.FramePayload{
		Now:       now,
		Territory: territory,
		Elements:  []streaming.ElementView{},
		Freezes:   []streaming.FreezeView{},
	}
	for _, c := range ctrls {
		for _, ne := range slices.Concat(c.EnabledElements(), c.LayoutElements(territory)) {
			frame.Elements = append(frame.Elements, streaming.ElementView{
				Script:  c.Owner(),
				Name:    ne.Name,
				Element: *ne.Element,
			})
		}
	}
	for _, f := range freezes {
		view := streaming.FreezeView{ShowUntil: f.ShowUntil, Objects: make([]core.DisplayObject, 0, len(f.Objects))}
		for obj := range f.Objects {
			view.Objects = append(view.Objects, *obj)
		}
		slices.SortFunc(view.Objects, compareObjects)
		frame.Freezes = append(frame.Freezes, view)
	}
	return frame
}

func compareObjects(a, b core.DisplayObject) int {
	return cmp.Or(
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Position.X, b.Position.X),
		cmp.Compare(a.Position.Z, b.Position.Z),
		cmp.Compare(a.Position.Y, b.Position.Y),
		cmp.Compare(a.Text, b.Text),
	)
}

// ScriptInfos converts the engine's listing to its wire form.
func ScriptInfos(statuses []engine.Status) []streaming.ScriptInfo {
	out := make([]streaming.ScriptInfo, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, streaming.ScriptInfo{
			Name:        s.Name,
			Version:     s.Version,
			Author:      s.Author,
			Enabled:     s.Enabled,
			Active:      s.Active,
			Blacklisted: s.Blacklisted,
		})
	}
	return out
}
