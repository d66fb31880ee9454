// Copyright 2025 Kadir Pekel
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

package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName is the directory name backends use to persist local state
// (embedded vector indexes, checkpoints) next to a source path.
const StateDirName = ".memento"

// EnsureStateDir ensures the state directory exists at the given base path.
// If basePath is empty or ".", it creates ./.memento in the current
// directory; otherwise it creates {basePath}/.memento.
//
// Returns the full path to the state directory and any error.
func EnsureStateDir(basePath string) (string, error) {
	var stateDir string
	if basePath == "" || basePath == "." {
		stateDir = StateDirName
	} else {
		stateDir = filepath.Join(basePath, StateDirName)
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory at '%s': %w", stateDir, err)
	}

	return stateDir, nil
}
