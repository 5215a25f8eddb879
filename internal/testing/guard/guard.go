package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("OBSCURA_TEST_MODE") == "" {
			_ = os.Setenv("OBSCURA_TEST_MODE", "1")
		}
	})
}
