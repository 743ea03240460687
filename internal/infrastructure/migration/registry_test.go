package migration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func noop(*gorm.DB) error { return nil }

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("current version is the last step", func(t *testing.T) {
		assert.Equal(t, len(History()), reg.CurrentVersion())
		assert.Equal(t, 9, reg.CurrentVersion())
	})

	t.Run("pending steps are ascending and start above from", func(t *testing.T) {
		steps := reg.PendingSteps(6)
		assert.Len(t, steps, 3)
		assert.Equal(t, 7, steps[0].Version)
		assert.Equal(t, 9, steps[2].Version)

		assert.Len(t, reg.PendingSteps(0), 9)
		assert.Len(t, reg.PendingSteps(-3), 9)
		assert.Nil(t, reg.PendingSteps(9))
		assert.Nil(t, reg.PendingSteps(42))
	})

	t.Run("input order does not matter", func(t *testing.T) {
		r := NewRegistry(Step{Version: 2, Apply: noop}, Step{Version: 1, Apply: noop})
		assert.Equal(t, 1, r.Steps()[0].Version)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		steps := reg.Steps()
		steps[0] = Step{Version: 99}
		assert.Equal(t, 1, reg.Steps()[0].Version)
	})

	t.Run("gaps panic", func(t *testing.T) {
		assert.Panics(t, func() {
			NewRegistry(Step{Version: 1, Apply: noop}, Step{Version: 3, Apply: noop})
		})
	})

	t.Run("missing apply panics", func(t *testing.T) {
		assert.Panics(t, func() { NewRegistry(Step{Version: 1}) })
	})

	t.Run("empty registry", func(t *testing.T) {
		r := NewRegistry()
		assert.Equal(t, 0, r.CurrentVersion())
		assert.Nil(t, r.PendingSteps(0))
	})
}

func TestRegistry_StepErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(Step{Version: 1, Apply: func(*gorm.DB) error { return boom }})
	assert.ErrorIs(t, r.Steps()[0].Apply(nil), boom)
}
