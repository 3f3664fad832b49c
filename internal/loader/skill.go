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

package loader

import (
	"context"
	"fmt"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// SkillLoader implements skillreg.Loader by reading
// `.dmm/skills/{core,custom}/*.yaml` files. Skill.Core (yaml:"-", not part
// of the file itself) is set from which directory a definition came from.
type SkillLoader struct {
	layout Layout
}

// NewSkillLoader creates a SkillLoader rooted at layout.
func NewSkillLoader(layout Layout) *SkillLoader {
	return &SkillLoader{layout: layout}
}

// LoadAll reads every skill definition under skills/core/ and
// skills/custom/.
func (l *SkillLoader) LoadAll(ctx context.Context) ([]*domain.Skill, error) {
	var out []*domain.Skill
	for _, kind := range skillKindDirs {
		skills, err := unmarshalYAMLDir[domain.Skill](l.layout.skillsDir(kind))
		if err != nil {
			return nil, err
		}
		for _, s := range skills {
			s.Core = kind == "core"
		}
		out = append(out, skills...)
	}
	return out, nil
}

// LoadByID re-reads a single skill definition by id.
func (l *SkillLoader) LoadByID(ctx context.Context, id string) (*domain.Skill, error) {
	skills, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range skills {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "loader.SkillLoader.LoadByID", fmt.Sprintf("skill not found: %s", id))
}
