package models

import "gorm.io/gorm"

// pendingZeroes remembers defaulted columns that held an explicit zero before
// an insert. gorm writes the column default for a zero field and copies it back
// into the struct, so AfterCreate puts the zero back in both places.
type pendingZeroes struct {
	columns map[string]any
	resets  []func()
}

func (p *pendingZeroes) note(column string, isZero bool, zero any, reset func()) {
	if !isZero {
		return
	}
	if p.columns == nil {
		p.columns = make(map[string]any)
	}
	p.columns[column] = zero
	p.resets = append(p.resets, reset)
}

func (p *pendingZeroes) restore(tx *gorm.DB, model any) error {
	if len(p.columns) == 0 {
		return nil
	}
	columns, resets := p.columns, p.resets
	*p = pendingZeroes{}
	for _, reset := range resets {
		reset()
	}
	// NewDB drops the insert's statement but keeps its connection, so the
	// write joins the same transaction.
	return tx.Session(&gorm.Session{NewDB: true}).Model(model).UpdateColumns(columns).Error
}
