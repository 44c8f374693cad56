package media

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 200

// QRGenerator produce el PNG {"userId": <codigo unico>} y lo guarda en el Store.
type QRGenerator struct {
	store Store
}

func NewQRGenerator(store Store) *QRGenerator {
	return &QRGenerator{store: store}
}

func (g *QRGenerator) Generate(ctx context.Context) (string, error) {
	code := uuid.NewString()
	payload, err := json.Marshal(map[string]string{"userId": code})
	if err != nil {
		return "", err
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return g.store.Put(ctx, "qr/"+code+".png", png, "image/png")
}

// URL resuelve la referencia guardada a una URL publica o firmada.
func (g *QRGenerator) URL(ctx context.Context, ref string) (string, error) {
	return g.store.URL(ctx, ref)
}
