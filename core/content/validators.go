package content

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	endsAfterStartTag  = "endsafterstart"
	endsAfterStartText = "{0} must be after the start"
)

// InitValidators registers the content validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(eventStructValidation, Event{})
	validate.RegisterStructValidation(timetableStructValidation, TimetableEntry{})
	core.RegisterCustomTranslation(validate, translator, endsAfterStartTag, endsAfterStartText)
}

func eventStructValidation(sl validator.StructLevel) {
	evt := sl.Current().Interface().(Event)
	if evt.EndsAt.Valid && !evt.StartsAt.IsZero() && !evt.EndsAt.Time.After(evt.StartsAt) {
		sl.ReportError(evt.EndsAt, "ends_at", "EndsAt", endsAfterStartTag, "")
	}
}

// timetableStructValidation relies on "HH:MM" strings sorting like the times they hold.
func timetableStructValidation(sl validator.StructLevel) {
	te := sl.Current().Interface().(TimetableEntry)
	if len(te.StartTime) == 5 && len(te.EndTime) == 5 && te.EndTime <= te.StartTime {
		sl.ReportError(te.EndTime, "end_time", "EndTime", endsAfterStartTag, "")
	}
}
