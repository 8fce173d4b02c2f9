package domain

import (
	interfaces "saltyrtc/internal/domain/interfaces"
	types "saltyrtc/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Address     = types.Address
	Role        = types.Role
	CloseCode   = types.CloseCode
	TrustedPeer = types.TrustedPeer
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityStore = interfaces.IdentityStore
	TrustStore    = interfaces.TrustStore

	IdentityService = interfaces.IdentityService
	TrustService    = interfaces.TrustService
)

const (
	ServerAddress    = types.ServerAddress
	InitiatorAddress = types.InitiatorAddress

	Initiator = types.Initiator
	Responder = types.Responder

	CloseNormal                   = types.CloseNormal
	CloseGoingAway                = types.CloseGoingAway
	CloseNoSharedSubprotocol      = types.CloseNoSharedSubprotocol
	ClosePathFull                 = types.ClosePathFull
	CloseProtocolError            = types.CloseProtocolError
	CloseInternalError            = types.CloseInternalError
	CloseHandover                 = types.CloseHandover
	CloseDroppedByInitiator       = types.CloseDroppedByInitiator
	CloseInitiatorCouldNotDecrypt = types.CloseInitiatorCouldNotDecrypt
	CloseNoSharedTask             = types.CloseNoSharedTask
	CloseInvalidKey               = types.CloseInvalidKey
	CloseTimeout                  = types.CloseTimeout
)
