/*
Copyright 2025 Exportd Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/batchfile/exportd/database"
	"github.com/batchfile/exportd/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Master methods

func (m *MockDataSource) ClaimNextMaster(ctx context.Context, worker string, now time.Time, lockHorizon time.Duration) (int64, bool, error) {
	args := m.Called(ctx, worker, now, lockHorizon)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockDataSource) CreateMaster(ctx context.Context, master *model.MasterRecord) (*model.MasterRecord, error) {
	args := m.Called(ctx, master)
	return args.Get(0).(*model.MasterRecord), args.Error(1)
}

func (m *MockDataSource) GetMasterByID(ctx context.Context, masterID int64) (*model.MasterRecord, error) {
	args := m.Called(ctx, masterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MasterRecord), args.Error(1)
}

func (m *MockDataSource) CompleteMaster(ctx context.Context, masterID int64, worker string) (bool, error) {
	args := m.Called(ctx, masterID, worker)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) FailMaster(ctx context.Context, masterID int64, worker string, errMessage string) (bool, error) {
	args := m.Called(ctx, masterID, worker, errMessage)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) UpdateBusinessCenterPriority(ctx context.Context, businessCenterCode string, priority int) (int64, error) {
	args := m.Called(ctx, businessCenterCode, priority)
	return args.Get(0).(int64), args.Error(1)
}

// Detail methods

func (m *MockDataSource) StreamDetailRecords(ctx context.Context, masterID int64, fetchSize int) (database.DetailIterator, error) {
	args := m.Called(ctx, masterID, fetchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(database.DetailIterator), args.Error(1)
}

func (m *MockDataSource) CreateDetailRecord(ctx context.Context, record *model.DetailRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDataSource) CountDetailRecords(ctx context.Context, masterID int64) (int64, error) {
	args := m.Called(ctx, masterID)
	return args.Get(0).(int64), args.Error(1)
}

// MockDetailIterator is an in-memory DetailIterator for coordinator tests.
type MockDetailIterator struct {
	Rows     []*model.DetailRecord
	FailAt   int   // fail after yielding this many rows when FailWith is set
	FailWith error

	idx     int
	current *model.DetailRecord
	err     error
	closed  bool
}

func (it *MockDetailIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.FailWith != nil && it.idx >= it.FailAt {
		it.err = it.FailWith
		return false
	}
	if it.idx >= len(it.Rows) {
		return false
	}
	it.current = it.Rows[it.idx]
	it.idx++
	return true
}

func (it *MockDetailIterator) Row() *model.DetailRecord {
	return it.current
}

func (it *MockDetailIterator) Err() error {
	return it.err
}

func (it *MockDetailIterator) Close() error {
	it.closed = true
	return nil
}

func (it *MockDetailIterator) Closed() bool {
	return it.closed
}
