package giav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"casanova-portal/internal/domains/payment/ledger"
)

// =====================================================
// GIAV SOAP CLIENT
// =====================================================
// Thin client over the back office's SOAP endpoint. Only the five operations
// the payments core needs are wired; the portal's read-model projections talk
// to GIAV through their own services and are out of scope here.

type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(config *Config) ledger.Ledger {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.GetTimeout(),
		},
	}
}

// =====================================================
// LEDGER OPERATIONS
// =====================================================

func (c *Client) FolderBelongsToClient(ctx context.Context, folderID, clientID int64) (bool, error) {
	body := fmt.Sprintf(
		`<giav:ExpedientePorId><giav:IdExpediente>%d</giav:IdExpediente></giav:ExpedientePorId>`,
		folderID,
	)

	var resp expedienteResponse
	if err := c.call(ctx, "ExpedientePorId", body, &resp); err != nil {
		return false, err
	}

	return resp.Body.Result.IDCliente == clientID, nil
}

func (c *Client) ReservationsForFolder(ctx context.Context, folderID, clientID int64) ([]ledger.Reservation, error) {
	body := fmt.Sprintf(
		`<giav:ReservasPorExpediente><giav:IdExpediente>%d</giav:IdExpediente><giav:IdCliente>%d</giav:IdCliente></giav:ReservasPorExpediente>`,
		folderID, clientID,
	)

	var resp reservasResponse
	if err := c.call(ctx, "ReservasPorExpediente", body, &resp); err != nil {
		return nil, err
	}

	reservations := make([]ledger.Reservation, 0, len(resp.Body.Result.Reservas))
	for _, r := range resp.Body.Result.Reservas {
		amount, err := decimal.NewFromString(r.Importe)
		if err != nil {
			amount = decimal.Zero
		}

		start, _ := time.Parse("2006-01-02", r.FechaInicio)

		reservations = append(reservations, ledger.Reservation{
			ID:        r.ID,
			Service:   r.Servicio,
			StartDate: start,
			Amount:    amount,
			Status:    r.Estado,
		})
	}

	return reservations, nil
}

func (c *Client) CalcFolderPayment(ctx context.Context, folderID, clientID int64, reservations []ledger.Reservation) (*ledger.PaymentCalc, error) {
	body := fmt.Sprintf(
		`<giav:CalcularPagoExpediente><giav:IdExpediente>%d</giav:IdExpediente><giav:IdCliente>%d</giav:IdCliente></giav:CalcularPagoExpediente>`,
		folderID, clientID,
	)

	var resp calcPagoResponse
	if err := c.call(ctx, "CalcularPagoExpediente", body, &resp); err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(resp.Body.Result.TotalObjetivo)
	if err != nil {
		return nil, fmt.Errorf("giav: invalid total amount %q", resp.Body.Result.TotalObjetivo)
	}
	paid, err := decimal.NewFromString(resp.Body.Result.Pagado)
	if err != nil {
		return nil, fmt.Errorf("giav: invalid paid amount %q", resp.Body.Result.Pagado)
	}
	pending, err := decimal.NewFromString(resp.Body.Result.PendienteReal)
	if err != nil {
		return nil, fmt.Errorf("giav: invalid pending amount %q", resp.Body.Result.PendienteReal)
	}

	return &ledger.PaymentCalc{
		Total:     total,
		Paid:      paid,
		Pending:   pending,
		FullyPaid: resp.Body.Result.PagadoCompleto,
	}, nil
}

func (c *Client) HasCollection(ctx context.Context, token string) (bool, error) {
	body := fmt.Sprintf(
		`<giav:CobroExiste><giav:Referencia>%s</giav:Referencia></giav:CobroExiste>`,
		xmlEscape(token),
	)

	var resp cobroExisteResponse
	if err := c.call(ctx, "CobroExiste", body, &resp); err != nil {
		return false, err
	}

	return resp.Body.Result.Existe, nil
}

func (c *Client) RecordCollection(ctx context.Context, rec ledger.CollectionRecord) error {
	body := fmt.Sprintf(
		`<giav:InsertarCobro>`+
			`<giav:IdExpediente>%d</giav:IdExpediente>`+
			`<giav:IdCliente>%d</giav:IdCliente>`+
			`<giav:Importe>%s</giav:Importe>`+
			`<giav:Divisa>%s</giav:Divisa>`+
			`<giav:Referencia>%s</giav:Referencia>`+
			`<giav:FormaPago>%s</giav:FormaPago>`+
			`<giav:Fecha>%s</giav:Fecha>`+
			`</giav:InsertarCobro>`,
		rec.FolderID,
		rec.ClientID,
		rec.Amount.StringFixed(2),
		xmlEscape(rec.Currency),
		xmlEscape(rec.IntentToken),
		xmlEscape(rec.Provider+"/"+rec.Method),
		rec.PaidAt.Format("2006-01-02"),
	)

	var resp insertarCobroResponse
	if err := c.call(ctx, "InsertarCobro", body, &resp); err != nil {
		return err
	}

	if !resp.Body.Result.OK {
		return fmt.Errorf("giav: cobro rejected: %s", resp.Body.Result.Mensaje)
	}

	return nil
}

// =====================================================
// SOAP TRANSPORT
// =====================================================

func (c *Client) call(ctx context.Context, action, body string, out any) error {
	envelope := fmt.Sprintf(
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:giav="urn:giav">`+
			`<soap:Header><giav:Auth><giav:Agencia>%s</giav:Agencia><giav:Usuario>%s</giav:Usuario><giav:Clave>%s</giav:Clave></giav:Auth></soap:Header>`+
			`<soap:Body>%s</soap:Body>`+
			`</soap:Envelope>`,
		xmlEscape(c.config.Agency),
		xmlEscape(c.config.Username),
		xmlEscape(c.config.Password),
		body,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader([]byte(envelope)))
	if err != nil {
		return fmt.Errorf("giav: failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:giav#"+action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("giav: %s call failed: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("giav: failed to read %s response: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("giav: %s returned HTTP %d", action, resp.StatusCode)
	}

	if err := xml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("giav: failed to decode %s response: %w", action, err)
	}

	return nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// =====================================================
// RESPONSE ENVELOPES
// =====================================================

type expedienteResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Result struct {
			IDCliente int64 `xml:"IdCliente"`
		} `xml:"ExpedientePorIdResponse"`
	} `xml:"Body"`
}

type reservaXML struct {
	ID          int64  `xml:"Id"`
	Servicio    string `xml:"Servicio"`
	FechaInicio string `xml:"FechaInicio"`
	Importe     string `xml:"Importe"`
	Estado      string `xml:"Estado"`
}

type reservasResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Result struct {
			Reservas []reservaXML `xml:"Reservas>Reserva"`
		} `xml:"ReservasPorExpedienteResponse"`
	} `xml:"Body"`
}

type calcPagoResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Result struct {
			TotalObjetivo  string `xml:"TotalObjetivo"`
			Pagado         string `xml:"Pagado"`
			PendienteReal  string `xml:"PendienteReal"`
			PagadoCompleto bool   `xml:"PagadoCompleto"`
		} `xml:"CalcularPagoExpedienteResponse"`
	} `xml:"Body"`
}

type cobroExisteResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Result struct {
			Existe bool `xml:"Existe"`
		} `xml:"CobroExisteResponse"`
	} `xml:"Body"`
}

type insertarCobroResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Result struct {
			OK      bool   `xml:"Ok"`
			Mensaje string `xml:"Mensaje"`
		} `xml:"InsertarCobroResponse"`
	} `xml:"Body"`
}
