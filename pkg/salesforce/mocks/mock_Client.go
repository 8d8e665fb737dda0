// Package mocks provides test doubles for the salesforce client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	salesforce "github.com/sells-group/pe-intel/pkg/salesforce"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Query provides a mock function with given fields: ctx, soql, out
func (_m *MockClient) Query(ctx context.Context, soql string, out any) error {
	ret := _m.Called(ctx, soql, out)

	if len(ret) == 0 {
		panic("no return value specified for Query")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, any) error); ok {
		r0 = rf(ctx, soql, out)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// InsertOne provides a mock function with given fields: ctx, sObjectName, record
func (_m *MockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	ret := _m.Called(ctx, sObjectName, record)

	if len(ret) == 0 {
		panic("no return value specified for InsertOne")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, map[string]any) (string, error)); ok {
		return rf(ctx, sObjectName, record)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, map[string]any) string); ok {
		r0 = rf(ctx, sObjectName, record)
	} else {
		r0 = ret.String(0)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, map[string]any) error); ok {
		r1 = rf(ctx, sObjectName, record)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// InsertCollection provides a mock function with given fields: ctx, sObjectName, records
func (_m *MockClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	ret := _m.Called(ctx, sObjectName, records)

	if len(ret) == 0 {
		panic("no return value specified for InsertCollection")
	}

	var r0 []salesforce.CollectionResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, []map[string]any) ([]salesforce.CollectionResult, error)); ok {
		return rf(ctx, sObjectName, records)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, []map[string]any) []salesforce.CollectionResult); ok {
		r0 = rf(ctx, sObjectName, records)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]salesforce.CollectionResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, []map[string]any) error); ok {
		r1 = rf(ctx, sObjectName, records)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateOne provides a mock function with given fields: ctx, sObjectName, id, fields
func (_m *MockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	ret := _m.Called(ctx, sObjectName, id, fields)

	if len(ret) == 0 {
		panic("no return value specified for UpdateOne")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, map[string]any) error); ok {
		r0 = rf(ctx, sObjectName, id, fields)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
