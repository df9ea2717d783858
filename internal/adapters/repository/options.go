package repository

// GormOption applies a configuration option to the GormStore.
type GormOption func(*GormStore)

// WithAutoMigrate toggles schema migration on construction.
func WithAutoMigrate(enabled bool) GormOption {
	return func(s *GormStore) {
		s.autoMigrate = enabled
	}
}

// DynamoOption applies a configuration option to the DynamoStore.
type DynamoOption func(*DynamoStore)

// WithAttemptsTable overrides the attempts table name.
func WithAttemptsTable(name string) DynamoOption {
	return func(s *DynamoStore) {
		if name != "" {
			s.attemptsTable = name
		}
	}
}

// WithAthletesTable overrides the athletes table name.
func WithAthletesTable(name string) DynamoOption {
	return func(s *DynamoStore) {
		if name != "" {
			s.athletesTable = name
		}
	}
}
