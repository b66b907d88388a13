// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"errors"
	"testing"

	"moderation-platform/pkg/config"
	apperrors "moderation-platform/pkg/errors"
)

func TestNewQueueFromConfig_MemoryDefault(t *testing.T) {
	q, err := NewQueueFromConfig(&config.Config{})
	if err != nil {
		t.Fatalf("NewQueueFromConfig: %v", err)
	}
	if q == nil {
		t.Fatal("expected queue instance")
	}
}

func TestNewQueueFromConfig_InvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.QueueConfig
	}{
		{"unknown type", config.QueueConfig{Type: "kafka"}},
		{"redis without addr", config.QueueConfig{Type: "redis"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewQueueFromConfig(&config.Config{Queue: tc.cfg})
			if !errors.Is(err, apperrors.ErrInvalidArg) {
				t.Errorf("expected ErrInvalidArg, got %v", err)
			}
		})
	}
}

func TestNewBrokerFromConfig_InvalidType(t *testing.T) {
	_, err := NewBrokerFromConfig(&config.Config{
		Broker: config.BrokerConfig{Type: "nats"},
	}, nil)
	if !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Errorf("expected ErrInvalidArg, got %v", err)
	}
}

func TestNewDecisionClientFromConfig_InvalidProvider(t *testing.T) {
	_, err := NewDecisionClientFromConfig(&config.Config{
		Decision: config.DecisionConfig{Provider: "anthropic"},
	})
	if !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Errorf("expected ErrInvalidArg, got %v", err)
	}
}
