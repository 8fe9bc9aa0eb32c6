package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("KHLANG_TEST_MODE") == "" {
			_ = os.Setenv("KHLANG_TEST_MODE", "1")
		}
	})
}
