// Package workspace maps logical content repositories onto local working
// tree paths.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//Descriptor identifies one logical repository. Directory is the key that
//maps it to a single location below the repos root.
type Descriptor struct {
	URL       string `yaml:"url"`
	Directory string `yaml:"directory"`
	Branch    string `yaml:"branch"`
}

//Validate reports a descriptor that could not be mapped to a working tree
func (d Descriptor) Validate() error {
	if d.URL == "" {
		return errors.New("repository url is empty")
	}
	if d.Branch == "" {
		return errors.New("repository branch is empty")
	}
	if d.Directory == "" {
		return errors.New("repository directory is empty")
	}
	if d.Directory != filepath.Base(filepath.Clean(d.Directory)) || d.Directory == "." || d.Directory == ".." {
		return fmt.Errorf("repository directory %q must be a single path element", d.Directory)
	}
	return nil
}

func (d Descriptor) String() string {
	return d.Directory + "@" + d.Branch
}

//ExecutionContext is handed to the unit of work of a single workflow run.
type ExecutionContext struct {
	Repository Descriptor
}

//Layout resolves repository and content paths below BaseDir/ReposRoot.
type Layout struct {
	BaseDir   string
	ReposRoot string
}

//RepoPath returns the working tree path of d
func (l Layout) RepoPath(d Descriptor) string {
	return filepath.Join(l.BaseDir, l.ReposRoot, d.Directory)
}

//ContentPath returns the path of a file inside the category folder of d's
//working tree. The subfolder is skipped when empty or equal to the category.
func (l Layout) ContentPath(d Descriptor, category, subfolder, file string) string {
	if subfolder == "" || subfolder == category {
		return filepath.Join(l.RepoPath(d), category, file)
	}
	return filepath.Join(l.RepoPath(d), category, subfolder, file)
}

//Exists reports whether the working tree path of d is present on disk.
//Anything at that path counts as an existing clone.
func (l Layout) Exists(d Descriptor) (bool, error) {
	_, err := os.Stat(l.RepoPath(d))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
