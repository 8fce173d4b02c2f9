package types

import "fmt"

// CloseCode is a SaltyRTC close code, used both as WebSocket close status and
// as the reason carried by close and drop-responder messages.
type CloseCode uint16

const (
	CloseNormal                   CloseCode = 1000
	CloseGoingAway                CloseCode = 1001
	CloseNoSharedSubprotocol      CloseCode = 1002
	ClosePathFull                 CloseCode = 3000
	CloseProtocolError            CloseCode = 3001
	CloseInternalError            CloseCode = 3002
	CloseHandover                 CloseCode = 3003
	CloseDroppedByInitiator       CloseCode = 3004
	CloseInitiatorCouldNotDecrypt CloseCode = 3005
	CloseNoSharedTask             CloseCode = 3006
	CloseInvalidKey               CloseCode = 3007
	CloseTimeout                  CloseCode = 3008
)

var closeCodeNames = map[CloseCode]string{
	CloseNormal:                   "normal closure",
	CloseGoingAway:                "going away",
	CloseNoSharedSubprotocol:      "no shared subprotocol",
	ClosePathFull:                 "path full",
	CloseProtocolError:            "protocol error",
	CloseInternalError:            "internal error",
	CloseHandover:                 "handover",
	CloseDroppedByInitiator:       "dropped by initiator",
	CloseInitiatorCouldNotDecrypt: "initiator could not decrypt",
	CloseNoSharedTask:             "no shared task",
	CloseInvalidKey:               "invalid key",
	CloseTimeout:                  "timeout",
}

// Known reports whether c is one of the defined close codes.
func (c CloseCode) Known() bool {
	_, ok := closeCodeNames[c]
	return ok
}

// String returns the code and its description.
func (c CloseCode) String() string {
	if name, ok := closeCodeNames[c]; ok {
		return fmt.Sprintf("%d (%s)", uint16(c), name)
	}
	return fmt.Sprintf("%d (unknown)", uint16(c))
}
