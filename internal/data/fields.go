package data

// Field names one mutable attribute of an issue or tag. The dirty set
// records fields edited locally since the last flush; the sync merge
// uses the same granularity to decide which side of a conflict wins.
type Field string

const (
	FieldTitle           Field = "title"
	FieldContent         Field = "content"
	FieldPriority        Field = "priority"
	FieldCompleted       Field = "completed"
	FieldReminderEnabled Field = "reminder_enabled"
	FieldReminderTime    Field = "reminder_time"
	FieldTags            Field = "tags" // the issue's tag set
	FieldName            Field = "name" // tags
)

// FieldSet is a set of dirty fields for one record.
type FieldSet map[Field]bool

func (fs FieldSet) add(f Field) FieldSet {
	if fs == nil {
		fs = make(FieldSet)
	}
	fs[f] = true
	return fs
}

// Has reports whether the field is in the set. Safe on a nil set.
func (fs FieldSet) Has(f Field) bool {
	return fs[f]
}
