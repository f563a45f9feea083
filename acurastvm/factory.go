// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"github.com/ava-labs/avalanchego/snow"
	"github.com/ava-labs/avalanchego/vms"
)

var _ vms.Factory = &Factory{}

// Factory creates VMs.
type Factory struct{}

func (*Factory) New(*snow.Context) (interface{}, error) { return &VM{}, nil }
