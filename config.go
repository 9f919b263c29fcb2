package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justinsantoro/warframesync/git"
	"github.com/justinsantoro/warframesync/workflow"
	"github.com/justinsantoro/warframesync/workspace"
)

type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type Config struct {
	//Root of everything written to disk
	BaseDir string `yaml:"baseDir"`
	//Folder below BaseDir holding the working trees
	ReposFolder string `yaml:"reposFolder"`
	//Content repository kept in sync
	Repository workspace.Descriptor `yaml:"repository"`
	//Base url of the warframestat api
	WarframestatURL   string `yaml:"warframestatURL"`
	WarframestatToken string `yaml:"warframestatToken"`
	//Github token
	GitToken        string `yaml:"gitToken"`
	InsecureSkipTLS bool   `yaml:"insecureSkipTLS"`
	//Identity put on data commits
	Author Author `yaml:"author"`
	//Time between two runs
	Interval      time.Duration `yaml:"interval"`
	GitTimeout    time.Duration `yaml:"gitTimeout"`
	ResetAttempts int           `yaml:"resetAttempts"`
	//Address of the status server
	Listen string `yaml:"listen"`
	//Skip commit and push
	DryRun bool `yaml:"dryRun"`
	Debug  bool `yaml:"debug"`
}

//DefaultConfig returns the configuration used for keys a config file leaves
//out. baseDir is where relative paths are resolved.
func DefaultConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		ReposFolder: "repos",
		Repository: workspace.Descriptor{
			Directory: "warframeblog",
			Branch:    "develop",
		},
		Author:        Author{Name: git.DefaultAuthorName, Email: git.DefaultAuthorEmail},
		Interval:      5 * time.Second,
		GitTimeout:    git.DefaultTimeout,
		ResetAttempts: workflow.DefaultResetAttempts,
		Listen:        ":8080",
	}
}

//ReadConfig decodes the yaml file at fpath over the defaults
func ReadConfig(fpath string, defaults *Config) (*Config, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	conf := *defaults
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fpath, err)
	}
	return &conf, nil
}

//ApplyEnv overrides conf with the environment variables that are set
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, dst := range map[string]*string{
		"APP_BASEDIR":           &c.BaseDir,
		"REPOS_FOLDER":          &c.ReposFolder,
		"GITHUB_TOKEN":          &c.GitToken,
		"WARFRAMEBLOG_REPO_URL": &c.Repository.URL,
		"WARFRAMESTAT_API_URL":  &c.WarframestatURL,
		"WARFRAMESTAT_TOKEN":    &c.WarframestatToken,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.BaseDir == "" {
		errs = append(errs, errors.New("baseDir is empty"))
	}
	if c.ReposFolder == "" || filepath.IsAbs(c.ReposFolder) {
		errs = append(errs, fmt.Errorf("reposFolder %q must be a relative path", c.ReposFolder))
	}
	if err := c.Repository.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.WarframestatURL == "" {
		errs = append(errs, errors.New("warframestatURL is empty"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval %s must be positive", c.Interval))
	}
	if c.ResetAttempts < 1 {
		errs = append(errs, fmt.Errorf("resetAttempts %d must be at least 1", c.ResetAttempts))
	}
	return errors.Join(errs...)
}

func (c *Config) Layout() workspace.Layout {
	return workspace.Layout{BaseDir: c.BaseDir, ReposRoot: c.ReposFolder}
}

func (c *Config) GitOptions() git.Options {
	return git.Options{
		Token:           c.GitToken,
		InsecureSkipTLS: c.InsecureSkipTLS,
		AuthorName:      c.Author.Name,
		AuthorEmail:     c.Author.Email,
		Timeout:         c.GitTimeout,
	}
}
