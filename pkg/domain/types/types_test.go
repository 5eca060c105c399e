package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

func TestRecordClass(t *testing.T) {
	t.Run("all classes are valid", func(t *testing.T) {
		for _, class := range types.AllRecordClasses() {
			gt.Bool(t, class.IsValid()).True()
		}
	})

	t.Run("unknown class is invalid", func(t *testing.T) {
		gt.Bool(t, types.RecordClass("bogus").IsValid()).False()
		gt.Bool(t, types.RecordClass("").IsValid()).False()
	})

	t.Run("parse valid class", func(t *testing.T) {
		class, err := types.ParseRecordClass("task_context")
		gt.NoError(t, err).Required()
		gt.Value(t, class).Equal(types.ClassTaskContext)
	})

	t.Run("parse invalid class fails", func(t *testing.T) {
		_, err := types.ParseRecordClass("TaskContext")
		gt.Value(t, err).NotNil()
	})
}

func TestFeedback(t *testing.T) {
	t.Run("valid feedback values", func(t *testing.T) {
		gt.Bool(t, types.FeedbackPositive.IsValid()).True()
		gt.Bool(t, types.FeedbackNegative.IsValid()).True()
		gt.Bool(t, types.Feedback("neutral").IsValid()).False()
	})

	t.Run("parse feedback", func(t *testing.T) {
		fb, err := types.ParseFeedback("negative")
		gt.NoError(t, err).Required()
		gt.Value(t, fb).Equal(types.FeedbackNegative)

		_, err = types.ParseFeedback("meh")
		gt.Value(t, err).NotNil()
	})
}

func TestRecordID(t *testing.T) {
	t.Run("generated IDs are unique", func(t *testing.T) {
		a := types.NewRecordID()
		b := types.NewRecordID()
		gt.String(t, a.String()).NotEqual("")
		gt.Value(t, a == b).Equal(false)
	})
}
