package report

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PairingPayload is embedded into the registration QR code so an admin app
// can adopt this terminal.
type PairingPayload struct {
	TerminalID string `json:"terminalId"`
	Name       string `json:"name"`
	TenantID   string `json:"tenantId,omitempty"`
}

// GeneratePairingQR renders the terminal pairing code as a PNG
func GeneratePairingQR(p PairingPayload, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pairing payload: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}
	return png, nil
}
