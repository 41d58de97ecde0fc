package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"club-registration/internal/util"
)

// Credentials identify the service account. Either Email+PrivateKey or
// CredentialsFile must be set.
type Credentials struct {
	Email           string
	PrivateKey      string
	CredentialsFile string
}

// Client talks to Google Sheets v4 for cell data and Drive v3 for files.
type Client struct {
	srv   *sheetsv4.Service
	drive *drivev3.Service
}

var _ Store = (*Client)(nil)

func New(ctx context.Context, creds Credentials) (*Client, error) {
	opts, err := clientOptions(ctx, creds)
	if err != nil {
		return nil, err
	}
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	drv, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &Client{srv: srv, drive: drv}, nil
}

func clientOptions(ctx context.Context, creds Credentials) ([]option.ClientOption, error) {
	scopes := []string{sheetsv4.SpreadsheetsScope, drivev3.DriveFileScope}

	if path := strings.TrimSpace(creds.CredentialsFile); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("service account json: %w", err)
		}
		return []option.ClientOption{
			option.WithCredentialsFile(path),
			option.WithScopes(scopes...),
		}, nil
	}

	if creds.Email == "" || creds.PrivateKey == "" {
		return nil, fmt.Errorf("service account email and private key are required")
	}
	conf := &jwt.Config{
		Email:      creds.Email,
		PrivateKey: []byte(util.NormalizePrivateKey(creds.PrivateKey)),
		Scopes:     scopes,
		TokenURL:   google.JWTTokenURL,
	}
	return []option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx))}, nil
}

// ---------- documents (Drive) ----------

func (c *Client) CreateDocument(ctx context.Context, req CreateDocumentRequest) (Document, error) {
	f, err := c.drive.Files.Create(&drivev3.File{Name: req.Name, MimeType: req.Kind}).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return Document{}, err
	}
	if f.Id == "" {
		return Document{}, fmt.Errorf("create %q: no id returned", req.Name)
	}
	return Document{ID: f.Id, Name: f.Name}, nil
}

func (c *Client) FindDocuments(ctx context.Context, req FindDocumentsRequest) ([]Document, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(req.Name), escapeQuery(req.Kind))
	resp, err := c.drive.Files.List().
		Q(q).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(resp.Files))
	for _, f := range resp.Files {
		docs = append(docs, Document{ID: f.Id, Name: f.Name})
	}
	return docs, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.drive.Files.Delete(documentID).Context(ctx).Do()
}

func (c *Client) GetDocument(ctx context.Context, documentID string) (Document, error) {
	ss, err := c.srv.Spreadsheets.Get(documentID).
		Fields("spreadsheetId", "properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return Document{}, err
	}
	doc := Document{ID: ss.SpreadsheetId}
	if ss.Properties != nil {
		doc.Name = ss.Properties.Title
	}
	return doc, nil
}

// ---------- ranges (Sheets) ----------

func (c *Client) GetRange(ctx context.Context, req GetRangeRequest) (Grid, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(req.DocumentID, req.Range).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return fromValues(resp.Values), nil
}

func (c *Client) SetRange(ctx context.Context, req SetRangeRequest) error {
	vr := &sheetsv4.ValueRange{Values: toValues(req.Rows)}
	_, err := c.srv.Spreadsheets.Values.Update(req.DocumentID, req.Range, vr).
		ValueInputOption(InputRaw).
		Context(ctx).
		Do()
	return err
}

func (c *Client) AppendRows(ctx context.Context, req AppendRowsRequest) error {
	vr := &sheetsv4.ValueRange{Values: toValues(req.Rows)}
	_, err := c.srv.Spreadsheets.Values.Append(req.DocumentID, req.Range, vr).
		ValueInputOption(InputRaw).
		InsertDataOption(InsertRows).
		Context(ctx).
		Do()
	return err
}

func (c *Client) BatchSetRanges(ctx context.Context, req BatchSetRangesRequest) error {
	data := make([]*sheetsv4.ValueRange, 0, len(req.Data))
	for _, d := range req.Data {
		data = append(data, &sheetsv4.ValueRange{Range: d.Range, Values: toValues(d.Rows)})
	}
	_, err := c.srv.Spreadsheets.Values.BatchUpdate(req.DocumentID, &sheetsv4.BatchUpdateValuesRequest{
		ValueInputOption: InputRaw,
		Data:             data,
	}).Context(ctx).Do()
	return err
}

func (c *Client) FormatBold(ctx context.Context, req FormatBoldRequest) error {
	repeat := &sheetsv4.RepeatCellRequest{
		Range: &sheetsv4.GridRange{
			StartRowIndex:    req.StartRow,
			EndRowIndex:      req.EndRow,
			StartColumnIndex: req.StartCol,
			EndColumnIndex:   req.EndCol,
			// zero indexes are meaningful here
			ForceSendFields: []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
		},
		Cell: &sheetsv4.CellData{
			UserEnteredFormat: &sheetsv4.CellFormat{
				TextFormat: &sheetsv4.TextFormat{Bold: true},
			},
		},
		Fields: "userEnteredFormat.textFormat.bold",
	}
	_, err := c.srv.Spreadsheets.BatchUpdate(req.DocumentID, &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{RepeatCell: repeat}},
	}).Context(ctx).Do()
	return err
}

// ---------- helpers ----------

func toValues(g Grid) [][]interface{} {
	out := make([][]interface{}, 0, len(g))
	for _, row := range g {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		out = append(out, cells)
	}
	return out
}

func fromValues(values [][]interface{}) Grid {
	g := make(Grid, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i := range row {
			cells[i] = get(row, i)
		}
		g = append(g, cells)
	}
	return g
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

// escapeQuery quotes a literal for a Drive files.list query.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
