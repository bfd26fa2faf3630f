package e2e

import "github.com/threema-ch/libthreema-go/model"

// InnerType identifies a decoded message container's outer-type byte
// for the 1:1 message types this pipeline supports, per spec.md §4.4
// "Dispatch". Byte values follow the wire-format convention already
// public in other Threema client implementations; spec.md itself only
// names these types by their behavioral properties, not their byte
// values (see DESIGN.md).
type InnerType model.OuterType

const (
	InnerTypeText             InnerType = 0x01
	InnerTypeLocation         InnerType = 0x10
	InnerTypeDeliveryReceipt  InnerType = 0x80
	InnerTypeLegacyReaction   InnerType = 0xA0
	InnerTypeWebSessionResume InnerType = 0xF0

	// InnerTypeGroupMemberContainer and InnerTypeGroupCreatorContainer
	// wrap a group-identity header (spec.md §4.4 "Dispatch"); handling
	// is stubbed to reject per spec.md §9's group-messaging
	// Open Question.
	InnerTypeGroupMemberContainer  InnerType = 0x41
	InnerTypeGroupCreatorContainer InnerType = 0x42
)

// Properties describes the per-type behavior spec.md §4.4 tabulates
// under "Per-type properties".
type Properties struct {
	Push                  bool
	Ephemeral             bool // combined no-server-queuing + no-server-acknowledgement
	ProfileDistribution   bool
	RequiresDirectContact bool
	ReplayProtection      bool
	Reflect               bool
	DeliveryReceipts      bool
	ExemptFromBlocking    bool
}

// propertiesFor returns the Properties for a supported inner type, or
// ok=false for anything not in the per-type table (including the
// stubbed group containers, reflecting that they're not dispatched).
func propertiesFor(t InnerType) (Properties, bool) {
	switch t {
	case InnerTypeText, InnerTypeLocation:
		return Properties{
			Push: true, ProfileDistribution: true, RequiresDirectContact: true,
			ReplayProtection: true, Reflect: true, DeliveryReceipts: true,
		}, true
	case InnerTypeDeliveryReceipt:
		return Properties{Reflect: true}, true
	case InnerTypeLegacyReaction:
		return Properties{ProfileDistribution: true, ReplayProtection: true, Reflect: true}, true
	case InnerTypeWebSessionResume:
		return Properties{Ephemeral: true, ReplayProtection: true, ExemptFromBlocking: true}, true
	default:
		return Properties{}, false
	}
}

// TextMessage is the decoded body of an InnerTypeText container: the
// remaining bytes after the outer-type byte, interpreted as UTF-8.
type TextMessage struct {
	Text string
}

// LocationMessage is the decoded body of an InnerTypeLocation
// container, per the fields named in spec.md §8 scenario S3.
type LocationMessage struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Name      string
	Address   string
}

// DeliveryReceiptMessage acknowledges one or more prior messages.
type DeliveryReceiptMessage struct {
	ReceiptType byte
	MessageIDs  []model.MessageID
}
