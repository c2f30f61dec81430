package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

func sampleDefs() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name:        "list_emails",
			Category:    models.CategoryEmail,
			DisplayName: "List emails",
			ProviderKey: "gmail",
			Source:      models.SourceCache,
			CacheModel:  "email",
			Parameters:  models.ParameterSchema{Type: "object"},
		},
		{
			Name:        "send_email",
			Category:    models.CategoryEmail,
			DisplayName: "Send an email",
			ProviderKey: "gmail",
			Source:      models.SourceAction,
			ActionName:  "send_email",
			Parameters: models.ParameterSchema{
				Type: "object",
				Properties: map[string]*models.ParameterSchema{
					"to":      {Type: "string"},
					"subject": {Type: "string", Optional: true},
				},
				Required: []string{"to"},
			},
		},
	}
}

func TestNewIndexesByNameCategoryAndProvider(t *testing.T) {
	c, err := New(sampleDefs())
	require.NoError(t, err)

	assert.Len(t, c.GetAll(), 2)

	def, ok := c.GetByName("send_email")
	require.True(t, ok)
	assert.Equal(t, models.SourceAction, def.Source)

	assert.Len(t, c.GetByCategory(models.CategoryEmail), 2)
	assert.Len(t, c.GetByProviderKey("gmail"), 2)
	assert.Empty(t, c.GetByProviderKey("crm"))

	key, ok := c.GetProviderKey("list_emails")
	require.True(t, ok)
	assert.Equal(t, "gmail", key)
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	defs := append(sampleDefs(), sampleDefs()[0])
	_, err := New(defs)
	assert.Error(t, err)
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New([]models.ToolDefinition{{Category: models.CategoryEmail}})
	assert.Error(t, err)
}

func TestFormatForLLMStripsOptionalFlagAndComputesRequired(t *testing.T) {
	c, err := New(sampleDefs())
	require.NoError(t, err)

	defs, err := FormatForLLM(c.GetAll())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	var sendDef *models.LLMFunctionDef
	for i := range defs {
		if defs[i].Name == "send_email" {
			sendDef = &defs[i]
		}
	}
	require.NotNil(t, sendDef)
	assert.NotContains(t, string(sendDef.Parameters), "optional")
	assert.Contains(t, string(sendDef.Parameters), `"to"`)
}

func TestValidateCatchesMissingRequiredField(t *testing.T) {
	c, err := New(sampleDefs())
	require.NoError(t, err)

	err = c.Validate("send_email", []byte(`{"subject":"hi"}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Fields)
}

func TestValidateAcceptsWellFormedArgs(t *testing.T) {
	c, err := New(sampleDefs())
	require.NoError(t, err)
	assert.NoError(t, c.Validate("send_email", []byte(`{"to":"a@example.com"}`)))
}

func TestValidateRejectsUnknownTool(t *testing.T) {
	c, err := New(sampleDefs())
	require.NoError(t, err)
	assert.Error(t, c.Validate("does_not_exist", []byte(`{}`)))
}

func TestLoadFromBytesParsesDeclarativeDocument(t *testing.T) {
	doc := `
tools:
  - name: list_emails
    category: email
    display_name: List emails
    provider_key: gmail
    source: cache
    cache_model: email
    parameters:
      type: object
`
	c, err := LoadFromBytes([]byte(doc))
	require.NoError(t, err)
	_, ok := c.GetByName("list_emails")
	assert.True(t, ok)
}
