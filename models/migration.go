package models

import (
	"log"

	"github.com/symphonia/tms_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&TmsConnection{}, &TmsSyncRun{}, &TmsSyncError{},
		&TransportOrder{}, &Carrier{}, &Contact{}, &FleetVehicle{}, &Driver{}, &Invoice{},
		&MonitoringLogEntry{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
