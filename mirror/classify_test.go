/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mirror

import (
	"testing"

	"ordermirror/constants"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		execType string
		want     Action
	}{
		{constants.ExecTypeNew, ActionOpen},
		{constants.ExecTypePendingNew, ActionOpen},
		{constants.ExecTypeReplaced, ActionReplace},
		{constants.ExecTypeCanceled, ActionCancel},
		{constants.ExecTypePendingCancel, ActionCancel},
		{constants.ExecTypeRejected, ActionNone},
		{constants.ExecTypePartialFill, ActionNone},
		{constants.ExecTypeFilled, ActionNone},
		{constants.ExecTypeCalculated, ActionNone},
		{"", ActionNone},
	}
	for _, c := range cases {
		if got := Classify(c.execType); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.execType, got, c.want)
		}
	}
}
