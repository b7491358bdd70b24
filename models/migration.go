package models

import (
	"log"

	"github.com/gemcertify/certify_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	if err := db.AutoMigrate(&Admin{}); err != nil {
		log.Fatal(err)
	}

	// gem_reports and rudraksha_reports share the Report shape; migrate the
	// same struct once per category table.
	for _, category := range AllReportCategories {
		if err := db.Table(category.TableName()).AutoMigrate(&Report{}); err != nil {
			log.Fatal(err)
		}
	}

	log.Println("Migrated tables")
}
