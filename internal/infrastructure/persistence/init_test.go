package persistence_test

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func init() {
	// Integration tests read TIDB_* from the .env at the module root.
	// Tests run from internal/infrastructure/persistence/.
	paths := []string{
		"../../../.env", // Module root
		"../../.env",    // Fallback
		".env",          // Current directory
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				log.Printf("📁 Loaded .env from %s for tests", p)
				return
			}
		}
	}

	log.Println("⚠️  No .env file found for tests - integration tests will be skipped")
}
