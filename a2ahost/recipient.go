// Copyright 2025 The A2A Authors
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

package a2ahost

import "github.com/a2aproject/a2a-host/a2a"

// recipientKey resolves the recipient a task's updates are delivered to: the
// first wallet address found scanning the status message metadata, then the
// history oldest first. An empty result means no owner is known yet; delivery
// is skipped but persistence still records the task.
func recipientKey(task *a2a.Task) string {
	if task.Status.Message != nil {
		if wallet := a2a.MetadataString(task.Status.Message.Metadata, a2a.WalletAddressKey); wallet != "" {
			return wallet
		}
	}
	for _, msg := range task.History {
		if msg == nil {
			continue
		}
		if wallet := a2a.MetadataString(msg.Metadata, a2a.WalletAddressKey); wallet != "" {
			return wallet
		}
	}
	return ""
}
