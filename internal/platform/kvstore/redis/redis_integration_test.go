//go:build integration

package redis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberpass/internal/platform/kvstore"
	"memberpass/internal/platform/kvstore/storetest"
	"memberpass/pkg/testutil/containers"
)

func TestRedisContract(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &storetest.ContractSuite{
		NewStore: func() kvstore.Store {
			return New(rc.Client, WithPrefix("test:"+uuid.NewString()+":"))
		},
	})
}
