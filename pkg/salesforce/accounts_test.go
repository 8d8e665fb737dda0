package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client with per-method function fields.
type mockClient struct {
	queryFn            func(ctx context.Context, soql string, out any) error
	insertOneFn        func(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	insertCollectionFn func(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	updateOneFn        func(ctx context.Context, sObjectName string, id string, fields map[string]any) error
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	return m.queryFn(ctx, soql, out)
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	return m.insertOneFn(ctx, sObjectName, record)
}

func (m *mockClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	return m.insertCollectionFn(ctx, sObjectName, records)
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	return m.updateOneFn(ctx, sObjectName, id, fields)
}

func TestFindAccountByWebsite(t *testing.T) {
	t.Run("returns account when found", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "Website LIKE 'apexcap.com'")
				assert.Contains(t, soql, "SELECT Id, Name")

				accounts := out.(*[]Account)
				*accounts = []Account{
					{ID: "001xx", Name: "Apex Capital Partners", Website: "apexcap.com"},
				}
				return nil
			},
		}

		acct, err := FindAccountByWebsite(context.Background(), mock, "apexcap.com")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, "001xx", acct.ID)
		assert.Equal(t, "Apex Capital Partners", acct.Name)
	})

	t.Run("returns nil when not found", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, out any) error {
				*out.(*[]Account) = []Account{}
				return nil
			},
		}

		acct, err := FindAccountByWebsite(context.Background(), mock, "nonexistent.com")
		require.NoError(t, err)
		assert.Nil(t, acct)
	})

	t.Run("wraps query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}

		_, err := FindAccountByWebsite(context.Background(), mock, "apexcap.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "find account by website")
	})
}

func TestFindAccountByName(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "Name = 'Blue Harbor Advisors'")

				*out.(*[]Account) = []Account{{ID: "002xx", Name: "Blue Harbor Advisors"}}
				return nil
			},
		}

		acct, err := FindAccountByName(context.Background(), mock, "Blue Harbor Advisors")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, "002xx", acct.ID)
	})

	t.Run("escapes quotes", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, `O\'Brien Capital`)
				*out.(*[]Account) = nil
				return nil
			},
		}

		_, err := FindAccountByName(context.Background(), mock, "O'Brien Capital")
		require.NoError(t, err)
	})
}

func TestCreateAccount(t *testing.T) {
	t.Run("creates with name", func(t *testing.T) {
		mock := &mockClient{
			insertOneFn: func(_ context.Context, sObjectName string, record map[string]any) (string, error) {
				assert.Equal(t, "Account", sObjectName)
				assert.Equal(t, "Apex Capital Partners", record["Name"])
				return "001new", nil
			},
		}

		id, err := CreateAccount(context.Background(), mock, map[string]any{
			"Name":     "Apex Capital Partners",
			"Industry": "Private Equity",
		})
		require.NoError(t, err)
		assert.Equal(t, "001new", id)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		_, err := CreateAccount(context.Background(), &mockClient{}, map[string]any{
			"Website": "https://nameless.com",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Name is required")
	})
}

func TestUpdateAccount(t *testing.T) {
	t.Run("updates fields", func(t *testing.T) {
		mock := &mockClient{
			updateOneFn: func(_ context.Context, sObjectName, id string, fields map[string]any) error {
				assert.Equal(t, "Account", sObjectName)
				assert.Equal(t, "001xx", id)
				assert.Equal(t, "Private Equity", fields["Industry"])
				return nil
			},
		}

		err := UpdateAccount(context.Background(), mock, "001xx", map[string]any{
			"Industry": "Private Equity",
		})
		require.NoError(t, err)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		err := UpdateAccount(context.Background(), &mockClient{}, "", map[string]any{"Phone": "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account id is required")
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		err := UpdateAccount(context.Background(), &mockClient{}, "001xx", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no fields to update")
	})
}
