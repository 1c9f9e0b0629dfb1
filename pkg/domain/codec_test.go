package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sampleDocument() Document {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	updated := created.Add(90 * time.Minute)
	supplierID := uuid.New()
	boltsID := uuid.New()
	nutsID := uuid.New()
	return Document{
		SchemaVersion: CurrentSchemaVersion,
		Users: []User{
			{ID: uuid.New(), Login: "admin", Password: "admin", Role: RoleAdmin},
			{ID: uuid.New(), Login: "manager", Password: "s3cr3t ", Role: RoleManager},
		},
		Suppliers: []Supplier{
			{ID: supplierID, Name: "Acme", ContactEmail: strPtr("sales@acme.test"), Phone: nil, Notes: strPtr("")},
		},
		Stock: []StockItem{
			{ID: boltsID, Name: "Bolts", QuantityOnHand: decimal.RequireFromString("10.125"), TargetLevel: decPtr("50"), LastPurchasePrice: decPtr("2.5")},
			{ID: nutsID, Name: "Nuts", QuantityOnHand: decimal.Zero},
		},
		Orders: []Order{
			{
				ID:         uuid.New(),
				SupplierID: supplierID,
				Status:     OrderStatusCompleted,
				CreatedAt:  created,
				UpdatedAt:  &updated,
				Lines: []OrderLine{
					{StockItemID: boltsID, Quantity: decimal.RequireFromString("10"), UnitPrice: decimal.RequireFromString("2.5")},
					{StockItemID: nutsID, Quantity: decimal.RequireFromString("0.333333333333333333"), UnitPrice: decimal.Zero},
				},
			},
			{ID: uuid.New(), SupplierID: supplierID, Status: OrderStatusInProgress, CreatedAt: created, Lines: []OrderLine{}},
		},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := sampleDocument()

	first, err := MarshalDocument(doc)
	require.NoError(t, err)
	parsed, err := UnmarshalDocument(first)
	require.NoError(t, err)
	second, err := MarshalDocument(parsed)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	require.Len(t, parsed.Orders, 2)
	assert.True(t, parsed.Orders[0].CreatedAt.Equal(doc.Orders[0].CreatedAt))
	assert.True(t, parsed.Orders[0].UpdatedAt.Equal(*doc.Orders[0].UpdatedAt))
	assert.Nil(t, parsed.Orders[1].UpdatedAt)
	assert.True(t, parsed.Orders[0].Total().Equal(doc.Orders[0].Total()))
	assert.True(t, parsed.Stock[0].QuantityOnHand.Equal(decimal.RequireFromString("10.125")))
	assert.Nil(t, parsed.Suppliers[0].Phone)
	require.NotNil(t, parsed.Suppliers[0].Notes)
	assert.Equal(t, "", *parsed.Suppliers[0].Notes)
	assert.Equal(t, "s3cr3t ", parsed.Users[1].Password)
}

func TestMarshalDocumentFormat(t *testing.T) {
	data, err := MarshalDocument(sampleDocument())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "{\n  \"SchemaVersion\": 1,"))
	assert.Contains(t, text, `"Stock": [`)
	assert.Contains(t, text, `"Items": [`)
	assert.Contains(t, text, `"Status": "Completed"`)
	assert.Contains(t, text, `"CreatedAt": "2026-03-14T09:26:53.589793Z"`)
	assert.Contains(t, text, `"UnitPrice": "2.5"`)
	assert.Contains(t, text, `"Quantity": "0.333333333333333333"`)
	assert.NotContains(t, text, "Total")
}

func TestUnmarshalDocumentIsCaseInsensitive(t *testing.T) {
	payload := `{
		"schemaversion": 1,
		"users": [{"id": "0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a01", "LOGIN": "Admin", "password": "pw", "role": "admin"}],
		"stock": [{"ID": "0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02", "name": "Bolts", "quantityonhand": 4}],
		"orders": [{"id": "0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a03", "supplierid": "0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a04",
			"status": "inprogress", "createdat": "2026-01-02T03:04:05Z",
			"items": [{"stockitemid": "0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02", "quantity": 1.5, "unitprice": "2"}]}]
	}`

	doc, err := UnmarshalDocument([]byte(payload))
	require.NoError(t, err)

	require.Len(t, doc.Users, 1)
	assert.Equal(t, "Admin", doc.Users[0].Login)
	assert.Equal(t, RoleAdmin, doc.Users[0].Role)
	require.Len(t, doc.Stock, 1)
	assert.True(t, doc.Stock[0].QuantityOnHand.Equal(decimal.NewFromInt(4)))
	require.Len(t, doc.Orders, 1)
	assert.Equal(t, OrderStatusInProgress, doc.Orders[0].Status)
	assert.True(t, doc.Orders[0].Total().Equal(decimal.NewFromInt(3)))
	assert.Empty(t, doc.Suppliers)
	assert.NotNil(t, doc.Suppliers)
}

func TestUnmarshalDocumentAcceptsLegacyEnumCodes(t *testing.T) {
	payload := `{"SchemaVersion":1,
		"Users":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a01","Login":"admin","Password":"admin","Role":1},
		         {"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a05","Login":"manager","Password":"manager","Role":0}],
		"Orders":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a03","SupplierId":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a04",
		           "Status":3,"CreatedAt":"2026-01-02T03:04:05Z","UpdatedAt":null,"Items":[]}]}`

	doc, err := UnmarshalDocument([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, doc.Users[0].Role)
	assert.Equal(t, RoleManager, doc.Users[1].Role)
	assert.Equal(t, OrderStatusCancelled, doc.Orders[0].Status)
}

func TestUnmarshalDocumentNormalizesSparsePayloads(t *testing.T) {
	for _, payload := range []string{`{}`, `null`, `{"SchemaVersion":0,"Users":null}`} {
		doc, err := UnmarshalDocument([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, NewDocument(), doc, payload)
	}
}

func TestUnmarshalDocumentRejectsCorruption(t *testing.T) {
	valid, err := MarshalDocument(sampleDocument())
	require.NoError(t, err)

	cases := map[string]string{
		"truncated":     string(valid[:len(valid)/2]),
		"empty":         "",
		"not json":      "this is not json",
		"wrong shape":   `{"Users": {"Login": "admin"}}`,
		"bad uuid":      `{"Users":[{"Id":"nope","Login":"a","Password":"b","Role":"Admin"}]}`,
		"nil id":        `{"Users":[{"Login":"a","Password":"b","Role":"Admin"}]}`,
		"bad role":      `{"Users":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a01","Login":"a","Password":"b","Role":"Owner"}]}`,
		"bad role code": `{"Users":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a01","Login":"a","Password":"b","Role":7}]}`,
		"missing role":  `{"Users":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a01","Login":"a","Password":"b"}]}`,
		"bad status":    `{"Orders":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a03","Status":9,"CreatedAt":"2026-01-02T03:04:05Z"}]}`,
		"bad decimal":   `{"Stock":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02","Name":"x","QuantityOnHand":"ten"}]}`,
		"duplicate ids": `{"Stock":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02","Name":"x","QuantityOnHand":"1"},
		                            {"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02","Name":"y","QuantityOnHand":"2"}]}`,
		"trailing data": `{"SchemaVersion":1} {"SchemaVersion":1}`,
	}
	for name, payload := range cases {
		_, err := UnmarshalDocument([]byte(payload))
		assert.Error(t, err, name)
	}
}
