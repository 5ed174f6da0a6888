package salesforce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
)

func TestLoadMetadataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.json")
	content := `{
		"name": "Account",
		"label": "Account",
		"fields": [
			{"name": "Name", "label": "Account Name", "type": "string", "required": true, "createable": true, "updateable": true}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	object, err := LoadMetadataFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Account", object.Name)
	require.Len(t, object.Fields, 1)
	assert.True(t, object.Fields[0].Required)
}

func TestLoadMetadataFileRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()

	noName := filepath.Join(dir, "noname.json")
	require.NoError(t, os.WriteFile(noName, []byte(`{"fields": [{"name": "X"}]}`), 0o644))
	_, err := LoadMetadataFile(noName)
	assert.ErrorContains(t, err, "no object name")

	noFields := filepath.Join(dir, "nofields.json")
	require.NoError(t, os.WriteFile(noFields, []byte(`{"name": "Account"}`), 0o644))
	_, err = LoadMetadataFile(noFields)
	assert.ErrorContains(t, err, "no fields")
}

func TestDescribe(t *testing.T) {
	describe := `{
		"name": "Account",
		"label": "Account",
		"labelPlural": "Accounts",
		"createable": true,
		"updateable": true,
		"fields": [
			{"name": "Id", "label": "Account ID", "type": "id", "nillable": false, "defaultedOnCreate": true},
			{"name": "Name", "label": "Account Name", "type": "string", "length": 255,
			 "nillable": false, "createable": true, "updateable": true},
			{"name": "Industry", "label": "Industry", "type": "picklist",
			 "nillable": true, "createable": true, "updateable": true,
			 "picklistValues": [
				{"active": true, "value": "Banking"},
				{"active": false, "value": "Retired Industry"},
				{"active": true, "value": "Technology"}
			]}
		],
		"recordTypeInfos": [
			{"recordTypeId": "012000000000000AAA", "developerName": "Master", "name": "Master",
			 "active": true, "defaultRecordTypeMapping": true, "master": true},
			{"recordTypeId": "0123000000000A1AAA", "developerName": "Partner", "name": "Partner Account",
			 "active": true, "defaultRecordTypeMapping": true, "master": false}
		]
	}`

	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, describe)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123", "v59.0", logger.New())
	object, err := client.Describe(context.Background(), "Account")
	require.NoError(t, err)

	assert.Equal(t, "/services/data/v59.0/sobjects/Account/describe", gotPath)
	assert.Equal(t, "Bearer token-123", gotAuth)

	assert.Equal(t, "Account", object.Name)
	require.Len(t, object.Fields, 3)

	// The defaulted ID field is not required; Name is
	id := object.FieldByName("Id")
	require.NotNil(t, id)
	assert.False(t, id.Required)
	assert.True(t, object.FieldByName("Name").Required)

	// Only active picklist values survive
	industry := object.FieldByName("Industry")
	require.NotNil(t, industry)
	assert.Equal(t, []string{"Banking", "Technology"}, industry.PicklistValues)

	// The synthetic master record type is dropped
	require.Len(t, object.RecordTypes, 1)
	assert.Equal(t, "Partner", object.RecordTypes[0].Name)
	require.NotNil(t, object.DefaultRecordType())
	assert.Equal(t, "0123000000000A1AAA", object.DefaultRecordType().RecordTypeID)
}

func TestDescribeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `[{"errorCode": "NOT_FOUND", "message": "The requested resource does not exist"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "v59.0", logger.New())
	_, err := client.Describe(context.Background(), "Bogus__c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestInsertBatch(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `[
			{"id": "0013000000abcdeAAA", "success": true, "errors": []},
			{"success": false, "errors": [{"statusCode": "REQUIRED_FIELD_MISSING", "message": "Required fields are missing", "fields": ["Name"]}]}
		]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "v59.0", logger.New())
	records := []Record{
		{"Name": "Acme", "Amount__c": 50.0},
		{"Amount__c": 75.0},
	}
	results, err := client.InsertBatch(context.Background(), "Opportunity", records)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/services/data/v59.0/composite/sobjects", gotPath)

	// Partial success is requested, and every record carries its sobject type
	assert.Equal(t, false, gotBody["allOrNone"])
	sent := gotBody["records"].([]interface{})
	require.Len(t, sent, 2)
	first := sent[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": "Opportunity"}, first["attributes"])
	assert.Equal(t, "Acme", first["Name"])

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "Required fields are missing", results[1].ErrorText())
}

func TestUpdateBatchUsesPatch(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		io.WriteString(w, `[{"id": "0013000000abcdeAAA", "success": true, "errors": []}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "v59.0", logger.New())
	results, err := client.UpdateBatch(context.Background(), "Account", []Record{
		{"Id": "0013000000abcdeAAA", "Name": "Acme Renamed"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Len(t, results, 1)
}

func TestWriteBatchEmpty(t *testing.T) {
	client := NewClient("https://example.my.salesforce.com", "token", "v59.0", logger.New())

	results, err := client.InsertBatch(context.Background(), "Account", nil)
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestWriteBatchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `[{"errorCode": "INVALID_SESSION_ID", "message": "Session expired or invalid"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "stale", "v59.0", logger.New())
	_, err := client.InsertBatch(context.Background(), "Account", []Record{{"Name": "Acme"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
