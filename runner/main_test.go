package runner

import (
	"os"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}
