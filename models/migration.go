package models

import (
	"github.com/mmdatafocus/church_backend/config"
)

func allModels() []interface{} {
	return []interface{}{
		&Attendance{},
		&Budget{},
		&Campaign{},
		&Donation{},
		&Event{}, &Expense{},
		&Group{}, &GroupEvent{}, &GroupMember{}, &GroupMessage{},
		&History{},
		&Member{},
		&OutboxMessage{},
		&Payment{}, &Pledge{}, &Project{},
		&RecurringDonation{}, &Role{}, &RoleModule{},
		&TaxReceipt{}, &TaxReceiptLine{}, &TaxReceiptSequence{},
		&User{},
	}
}

func MigrateTable() error {
	return config.GetDB().AutoMigrate(allModels()...)
}
