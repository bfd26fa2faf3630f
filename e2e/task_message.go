package e2e

import (
	"github.com/threema-ch/libthreema-go/aeadcodec"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// decryptAndDecode runs the rest of spec.md §4.4 "FetchSender" (key
// derivation, metadata/container decryption) plus the "Divergence
// checks", "Blocking", and "Special sender" steps. Any
// decryption/decoding/validation failure here is silently
// discard-then-ack per spec.md §7 ("not surfaced").
func (t *Task) decryptAndDecode() (*Instruction, bool, error) {
	keys, err := deriveE2EKeys(t.params.ClientPrivateKey, [32]byte(t.senderPublicKey))
	if err != nil {
		return t.fail(err)
	}
	t.keys = keys

	if t.env.HasMetadata() {
		md, err := t.decryptMetadata()
		if err != nil {
			return t.discardAndAck()
		}
		if md.MessageID != t.env.MessageID {
			return t.discardAndAck()
		}
		t.metadata = &md
	}

	container, err := t.decryptContainer()
	if err != nil {
		return t.discardAndAck()
	}
	if container.OuterType == model.ReservedOuterType {
		return t.discardAndAck()
	}
	t.container = container
	t.innerType = InnerType(container.OuterType)

	switch t.innerType {
	case InnerTypeGroupMemberContainer, InnerTypeGroupCreatorContainer:
		// Group messaging is explicitly out of scope (spec.md §1).
		// The group-identity header (creator-identity or group-id,
		// model.IdentityLen bytes) would prefix the inner body here;
		// it is not parsed out since the message is dropped either way.
		return t.discardAndAck()
	}

	props, ok := propertiesFor(t.innerType)
	if !ok {
		return t.discardAndAck()
	}
	t.props = props

	seen, err := t.params.Conversations.HasSeenMessageID(t.env.Sender, t.env.MessageID)
	if err != nil {
		return t.fail(err)
	}
	if seen {
		return t.discardAndAck()
	}

	if !t.props.ExemptFromBlocking {
		blocked, err := t.isBlocked()
		if err != nil {
			return t.fail(err)
		}
		if blocked {
			return t.discardAndAck()
		}
	}

	if t.env.Sender.String() == pushGatewayIdentity {
		if t.innerType != InnerTypeWebSessionResume {
			return t.discardAndAck()
		}
		if t.params.PushShortcut != nil {
			t.params.PushShortcut.HandleWebSessionResume(t.container.Body)
		}
		return t.discardAndAck() // ack without persisting: no contact/message state to keep
	}

	t.ph = phaseContactReconcile
	return t.pollContactReconcile()
}

func (t *Task) decryptMetadata() (model.MessageMetadata, error) {
	ct := append([]byte(nil), t.env.MetadataCiphertext...)
	dec := aeadcodec.NewXSalsa20Poly1305(t.keys.metadata, [24]byte(t.nonce))
	dec.Decrypt(ct)
	if err := dec.FinalizeVerify(t.env.MetadataTag); err != nil {
		return model.MessageMetadata{}, err
	}
	return model.DecodeMessageMetadata(ct)
}

func (t *Task) decryptContainer() (model.MessageContainer, error) {
	ct := append([]byte(nil), t.env.ContainerCiphertext...)
	dec := aeadcodec.NewXSalsa20Poly1305(t.keys.container, [24]byte(t.nonce))
	dec.Decrypt(ct)
	if err := dec.FinalizeVerify(t.env.ContainerTag); err != nil {
		return model.MessageContainer{}, err
	}
	unpadded, err := stripPadding(ct)
	if err != nil {
		return model.MessageContainer{}, err
	}
	if len(unpadded) < 1 {
		return model.MessageContainer{}, protoerr.New(protoerr.DecodingFailed, "empty message container")
	}
	return model.MessageContainer{OuterType: model.OuterType(unpadded[0]), Body: unpadded[1:]}, nil
}

// isBlocked implements spec.md §4.4 "Blocking": Allow iff the contact
// is special-predefined, or not explicitly blocked and (block-unknown
// is off, or the contact's acquaintance is direct, or the user shares
// an active group with the sender).
func (t *Task) isBlocked() (bool, error) {
	var explicitlyBlocked, specialPredefined, direct bool
	if t.senderContact != nil {
		explicitlyBlocked = t.senderContact.ExplicitlyBlocked
		specialPredefined = t.senderContact.IsSpecialPredefined
		direct = t.senderContact.AcquaintanceLevel == model.AcquaintanceDirect
	}
	if specialPredefined {
		return false, nil
	}
	if explicitlyBlocked {
		return true, nil
	}
	if !t.params.Settings.BlockUnknownContacts() {
		return false, nil
	}
	if direct {
		return false, nil
	}
	sharesGroup, err := t.params.Conversations.SharesActiveGroupWith(t.env.Sender)
	if err != nil {
		return false, err
	}
	return !sharesGroup, nil
}

// nicknameDelta implements spec.md §4.4 "Nickname update": prefer the
// metadata delta; otherwise, for profile-distributing message types,
// derive one from the legacy nickname field (all-zero → Unchanged,
// present-but-blank → Remove, non-blank → Update).
func (t *Task) nicknameDelta() model.Delta[string] {
	if t.metadata != nil {
		return t.metadata.NicknameDelta
	}
	if !t.props.ProfileDistribution {
		return model.Unchanged[string]()
	}
	raw := t.env.LegacyNickname
	allZero := true
	for _, b := range raw {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return model.Unchanged[string]()
	}
	trimmed := raw.String()
	if trimmed == "" {
		return model.Remove[string]()
	}
	return model.Update(trimmed)
}
