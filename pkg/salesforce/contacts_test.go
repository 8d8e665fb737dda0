package salesforce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindContactsByAccountID(t *testing.T) {
	mock := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			assert.Contains(t, soql, "FROM Contact WHERE AccountId = '001xx'")

			*out.(*[]Contact) = []Contact{
				{ID: "003aa", FirstName: "Jane", LastName: "Doe", Title: "Managing Partner"},
				{ID: "003bb", FirstName: "John", LastName: "Smith", Title: "Principal"},
			}
			return nil
		},
	}

	contacts, err := FindContactsByAccountID(context.Background(), mock, "001xx")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Jane", contacts[0].FirstName)
	assert.Equal(t, "Principal", contacts[1].Title)
}

func TestUpdateContact(t *testing.T) {
	t.Run("updates fields", func(t *testing.T) {
		mock := &mockClient{
			updateOneFn: func(_ context.Context, sObjectName, id string, fields map[string]any) error {
				assert.Equal(t, "Contact", sObjectName)
				assert.Equal(t, "003aa", id)
				assert.Equal(t, "Senior Partner", fields["Title"])
				return nil
			},
		}

		err := UpdateContact(context.Background(), mock, "003aa", map[string]any{
			"Title": "Senior Partner",
		})
		require.NoError(t, err)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		err := UpdateContact(context.Background(), &mockClient{}, "", map[string]any{"Title": "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contact id is required")
	})
}

func TestBulkCreateContacts(t *testing.T) {
	t.Run("empty input is a no-op", func(t *testing.T) {
		results, err := BulkCreateContacts(context.Background(), &mockClient{}, nil)
		require.NoError(t, err)
		assert.Nil(t, results)
	})

	t.Run("rejects records without AccountId", func(t *testing.T) {
		_, err := BulkCreateContacts(context.Background(), &mockClient{}, []map[string]any{
			{"LastName": "Doe", "AccountId": "001xx"},
			{"LastName": "Orphan"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record 1 has no AccountId")
	})

	t.Run("splits into API-sized batches", func(t *testing.T) {
		var batchSizes []int
		mock := &mockClient{
			insertCollectionFn: func(_ context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
				assert.Equal(t, "Contact", sObjectName)
				batchSizes = append(batchSizes, len(records))

				results := make([]CollectionResult, len(records))
				for i := range results {
					results[i] = CollectionResult{ID: fmt.Sprintf("003-%d", i), Success: true}
				}
				return results, nil
			},
		}

		records := make([]map[string]any, 450)
		for i := range records {
			records[i] = map[string]any{
				"LastName":  fmt.Sprintf("Person %d", i),
				"AccountId": "001xx",
			}
		}

		results, err := BulkCreateContacts(context.Background(), mock, records)
		require.NoError(t, err)
		assert.Equal(t, []int{200, 200, 50}, batchSizes)
		assert.Len(t, results, 450)
	})

	t.Run("wraps batch failure", func(t *testing.T) {
		mock := &mockClient{
			insertCollectionFn: func(_ context.Context, _ string, _ []map[string]any) ([]CollectionResult, error) {
				return nil, errors.New("503 service unavailable")
			},
		}

		_, err := BulkCreateContacts(context.Background(), mock, []map[string]any{
			{"LastName": "Doe", "AccountId": "001xx"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bulk insert contacts batch")
	})
}
