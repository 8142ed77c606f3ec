// Package scripts lists the scripts the host ships with.
package scripts

import (
	"github.com/overmark/overmark/internal/script"
	"github.com/overmark/overmark/internal/scripts/omega"
)

// Builtin returns fresh instances of every bundled script.
func Builtin() []script.Script {
	return []script.Script{
		omega.NewDynamisDelta(),
	}
}
