package models

// SyncableEntity is an interface for models that take part in outbox reconciliation
type SyncableEntity interface {
	GetEntityID() string
	GetEntityType() string
}

// RemoteModels lists the tables of the remote store in migration order
func RemoteModels() []interface{} {
	return []interface{}{
		&Organization{},
		&UserAuth{},
		&Home{},
		&Visit{},
		&Report{},
		&SyncConflict{},
	}
}

// LocalModels lists the tables of the device-local store
func LocalModels() []interface{} {
	return []interface{}{
		&LocalEntry{},
		&OutboxEntry{},
	}
}
