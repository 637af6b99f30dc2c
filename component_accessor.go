package silo

func (c AccessibleComponent[T]) Check(cursor *Cursor) bool {
	return c.Accessor.Check(cursor.currentArchetype.table)
}
