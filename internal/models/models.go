package models

// ===========================================================================
// Models Index
// ===========================================================================

// AllModels every table managed by database.AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&Workspace{},
		&Department{},
		&User{},
		&Instance{},
		&Contact{},
		&Conversation{},
		&Message{},
		&Persona{},
		&Integration{},
		&KnowledgeDocument{},
		&KnowledgeChunk{},
		&WebhookEvent{},
	}
}
