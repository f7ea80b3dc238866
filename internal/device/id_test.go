package device

import (
	"testing"

	"github.com/shoenig/test"
	"github.com/shoenig/test/must"
)

func TestParseID(t *testing.T) {
	for s, want := range map[string]ID{
		"b8:0":          {Kind: KindBlock, Major: 8, Minor: 0},
		"c189:1":        {Kind: KindChar, Major: 189, Minor: 1},
		"n3":            {Kind: KindNet, IfIndex: 3},
		"+input:input5": {Kind: KindSubsystem, Subsystem: "input", Sysname: "input5"},
	} {
		t.Run(s, func(t *testing.T) {
			id, err := ParseID(s)
			must.NoError(t, err)
			test.Eq(t, want, id)
			test.EqOp(t, s, id.String())
		})
	}
}

func TestParseIDMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"b",
		"b8",
		"b8:x",
		"c-1:0",
		"n0",
		"nx",
		"+input",
		"+:sda",
		"+block:",
		"+block:a/b",
		"+../../etc:secret",
		"+a/b:sda",
		"+.:sda",
		"+..:sda",
		"+net:..",
		"+net:.",
		"x8:0",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseID(s)
			test.ErrorIs(t, err, ErrBadID)
		})
	}
}
