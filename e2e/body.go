package e2e

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// decodeText decodes an InnerTypeText body: the remaining bytes are
// raw UTF-8 text.
func decodeText(body []byte) (TextMessage, error) {
	return TextMessage{Text: string(body)}, nil
}

// decodeLocation decodes an InnerTypeLocation body, the classic
// Threema wire format: "lat,lon,accuracy" on the first line, then
// optionally a point-of-interest name and address on the following
// two lines.
func decodeLocation(body []byte) (LocationMessage, error) {
	lines := strings.SplitN(string(body), "\n", 3)
	coords := strings.Split(lines[0], ",")
	if len(coords) < 2 {
		return LocationMessage{}, protoerr.New(protoerr.DecodingFailed, "location missing coordinates")
	}
	lat, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return LocationMessage{}, protoerr.Wrap(protoerr.DecodingFailed, "location latitude", err)
	}
	lon, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return LocationMessage{}, protoerr.Wrap(protoerr.DecodingFailed, "location longitude", err)
	}
	var accuracy float64
	if len(coords) > 2 {
		accuracy, err = strconv.ParseFloat(coords[2], 64)
		if err != nil {
			return LocationMessage{}, protoerr.Wrap(protoerr.DecodingFailed, "location accuracy", err)
		}
	}
	loc := LocationMessage{Latitude: lat, Longitude: lon, Accuracy: accuracy}
	if len(lines) > 1 {
		loc.Name = lines[1]
	}
	if len(lines) > 2 {
		loc.Address = lines[2]
	}
	return loc, nil
}

// decodeDeliveryReceipt decodes an InnerTypeDeliveryReceipt body: a
// 1-byte receipt type followed by zero or more 8-byte LE message IDs.
func decodeDeliveryReceipt(body []byte) (DeliveryReceiptMessage, error) {
	if len(body) < 1 {
		return DeliveryReceiptMessage{}, protoerr.New(protoerr.DecodingFailed, "delivery receipt missing type")
	}
	receiptType := body[0]
	rest := body[1:]
	if len(rest)%8 != 0 {
		return DeliveryReceiptMessage{}, protoerr.New(protoerr.DecodingFailed, "delivery receipt ids misaligned")
	}
	dr := DeliveryReceiptMessage{ReceiptType: receiptType}
	for i := 0; i+8 <= len(rest); i += 8 {
		dr.MessageIDs = append(dr.MessageIDs, model.MessageID(binary.LittleEndian.Uint64(rest[i:i+8])))
	}
	return dr, nil
}
