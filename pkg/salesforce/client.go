package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
)

// Record is an assembled record keyed by target field API name
type Record map[string]interface{}

// RecordResult is the per-record outcome of a bulk write
type RecordResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Errors  []struct {
		StatusCode string   `json:"statusCode"`
		Message    string   `json:"message"`
		Fields     []string `json:"fields"`
	} `json:"errors"`
}

// ErrorText returns the concatenated error messages for a failed record
func (r *RecordResult) ErrorText() string {
	if len(r.Errors) == 0 {
		return ""
	}
	text := r.Errors[0].Message
	for _, e := range r.Errors[1:] {
		text += "; " + e.Message
	}
	return text
}

// Client is a minimal Salesforce REST client for describe and bulk writes
type Client struct {
	instanceURL string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	log         *logger.Logger
}

// NewClient creates a new Salesforce REST client
func NewClient(instanceURL, accessToken, apiVersion string, log *logger.Logger) *Client {
	return &Client{
		instanceURL: instanceURL,
		accessToken: accessToken,
		apiVersion:  apiVersion,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log: log,
	}
}

// LoadMetadataFile reads an object describe result from a JSON file on disk,
// standing in for a live describe call
func LoadMetadataFile(path string) (*Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metadata file: %w", err)
	}

	var object Object
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("error parsing metadata file: %w", err)
	}

	if object.Name == "" {
		return nil, fmt.Errorf("metadata file has no object name")
	}
	if len(object.Fields) == 0 {
		return nil, fmt.Errorf("metadata for object %s has no fields", object.Name)
	}

	return &object, nil
}

// Describe fetches object metadata from the describe endpoint
func (c *Client) Describe(ctx context.Context, objectName string) (*Object, error) {
	url := fmt.Sprintf("%s/services/data/%s/sobjects/%s/describe", c.instanceURL, c.apiVersion, objectName)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to describe object %s: %w", objectName, err)
	}

	// The describe payload uses nillable/picklistValues[].value shapes; decode
	// through an intermediate form
	var raw struct {
		Name        string `json:"name"`
		Label       string `json:"label"`
		LabelPlural string `json:"labelPlural"`
		Custom      bool   `json:"custom"`
		Createable  bool   `json:"createable"`
		Updateable  bool   `json:"updateable"`
		Fields      []struct {
			Name              string    `json:"name"`
			Label             string    `json:"label"`
			Type              FieldType `json:"type"`
			Length            int       `json:"length"`
			Nillable          bool      `json:"nillable"`
			DefaultedOnCreate bool      `json:"defaultedOnCreate"`
			Updateable        bool      `json:"updateable"`
			Createable        bool      `json:"createable"`
			Calculated        bool      `json:"calculated"`
			AutoNumber        bool      `json:"autoNumber"`
			RelationshipName  string    `json:"relationshipName"`
			ReferenceTo       []string  `json:"referenceTo"`
			PicklistValues    []struct {
				Active bool   `json:"active"`
				Value  string `json:"value"`
			} `json:"picklistValues"`
		} `json:"fields"`
		RecordTypeInfos []struct {
			RecordTypeID             string `json:"recordTypeId"`
			DeveloperName            string `json:"developerName"`
			Name                     string `json:"name"`
			Active                   bool   `json:"active"`
			DefaultRecordTypeMapping bool   `json:"defaultRecordTypeMapping"`
			Master                   bool   `json:"master"`
		} `json:"recordTypeInfos"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse describe result for %s: %w", objectName, err)
	}

	object := &Object{
		Name:        raw.Name,
		Label:       raw.Label,
		LabelPlural: raw.LabelPlural,
		Custom:      raw.Custom,
		Createable:  raw.Createable,
		Updateable:  raw.Updateable,
		FetchedAt:   time.Now(),
	}

	for _, f := range raw.Fields {
		field := Field{
			Name:             f.Name,
			Label:            f.Label,
			Type:             f.Type,
			Length:           f.Length,
			Required:         !f.Nillable && !f.DefaultedOnCreate && f.Createable,
			Updateable:       f.Updateable,
			Createable:       f.Createable,
			Calculated:       f.Calculated,
			AutoNumber:       f.AutoNumber,
			RelationshipName: f.RelationshipName,
			ReferenceTo:      f.ReferenceTo,
		}
		for _, pv := range f.PicklistValues {
			if pv.Active {
				field.PicklistValues = append(field.PicklistValues, pv.Value)
			}
		}
		object.Fields = append(object.Fields, field)
	}

	for _, rt := range raw.RecordTypeInfos {
		// The synthetic master record type is not user-selectable
		if rt.Master {
			continue
		}
		object.RecordTypes = append(object.RecordTypes, RecordType{
			RecordTypeID: rt.RecordTypeID,
			Name:         rt.DeveloperName,
			Label:        rt.Name,
			IsActive:     rt.Active,
			IsDefault:    rt.DefaultRecordTypeMapping,
		})
	}

	c.log.Debugf("Described object %s: %d fields, %d record types",
		object.Name, len(object.Fields), len(object.RecordTypes))

	return object, nil
}

// InsertBatch inserts a batch of records via the sObject collections endpoint
func (c *Client) InsertBatch(ctx context.Context, objectName string, records []Record) ([]RecordResult, error) {
	return c.writeBatch(ctx, http.MethodPost, objectName, records)
}

// UpdateBatch updates a batch of records via the sObject collections endpoint.
// Each record must carry an Id field.
func (c *Client) UpdateBatch(ctx context.Context, objectName string, records []Record) ([]RecordResult, error) {
	return c.writeBatch(ctx, http.MethodPatch, objectName, records)
}

// writeBatch performs one collections request and returns per-record results
func (c *Client) writeBatch(ctx context.Context, method, objectName string, records []Record) ([]RecordResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// Attach the sobject type attribute to each record
	payload := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		entry := make(map[string]interface{}, len(record)+1)
		for k, v := range record {
			entry[k] = v
		}
		entry["attributes"] = map[string]string{"type": objectName}
		payload = append(payload, entry)
	}

	body, err := json.Marshal(map[string]interface{}{
		"allOrNone": false,
		"records":   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	url := fmt.Sprintf("%s/services/data/%s/composite/sobjects", c.instanceURL, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bulk write request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk write response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bulk write returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var results []RecordResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, fmt.Errorf("failed to parse bulk write response: %w", err)
	}

	return results, nil
}

// get performs an authenticated GET and returns the response body
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	return body, nil
}

// truncate shortens s for log and error output
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
