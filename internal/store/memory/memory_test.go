package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"spendwise/internal/store"
	"spendwise/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storetest.StoreSuite{
		NewStore: func(clock func() time.Time) (store.Store, error) {
			return NewWithClock(clock), nil
		},
	})
}
