package staging

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/stagingfs"
)

// DeployGoal uploads the project's pom, main artifact and attachments as one maven2 component.
// With Defer set the files are copied into the work directory and indexed for UploadGoal instead.
type DeployGoal struct {
	Goal
	Repository string
	Tag        string
	TagFile    string
	Skip       bool
	Defer      bool
	Project    Project
}

// deployable is one file of the component together with its maven2 asset attributes.
type deployable struct {
	file       string
	extension  string
	classifier string
}

func (d *DeployGoal) Execute(ctx context.Context) (*Result, error) {
	if d.Skip {
		log.Info("Skipping NXRM staging deploy")
		return &Result{}, nil
	}
	if !d.Defer {
		if err := d.failIfOffline(); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(d.Repository) == "" {
		return nil, executionError("The parameter 'repository' is required")
	}
	p := d.Project
	if p.GroupId == "" || p.ArtifactId == "" || p.Version == "" {
		return nil, executionError("project groupId, artifactId and version are required")
	}

	tag, err := d.resolveTag()
	if err != nil {
		return nil, err
	}
	files, err := d.deployables()
	if err != nil {
		return nil, err
	}

	if d.Defer {
		return d.stage(tag, files)
	}

	client, err := d.Client()
	if err != nil {
		return nil, err
	}
	if err := d.ensureTag(ctx, client, tag); err != nil {
		return nil, err
	}

	component, err := d.component(files)
	if err != nil {
		return nil, err
	}
	defer component.Close()

	log.Infof("Deploying to repository '%s' with tag '%s'", d.Repository, tag)
	if err := client.Upload(ctx, d.Repository, component, tag); err != nil {
		log.WithError(err).Error("Upload failed")
		return nil, failure(err)
	}
	return &Result{Tag: tag, Uploaded: 1}, nil
}

func (d *DeployGoal) resolveTag() (string, error) {
	if d.Tag != "" {
		return d.Tag, nil
	}
	if d.TagFile != "" {
		tag, err := readTagFile(d.TagFile)
		if err != nil {
			return "", wrapExecution(err, "failed to read tag file")
		}
		log.Infof("Deploying with tag '%s' from file %s", tag, d.TagFile)
		return tag, nil
	}
	tag := d.TagGenerator.Generate(d.Project.ArtifactId, d.Project.Version)
	log.Debugf("No tag was provided; using generated tag '%s'", tag)
	return tag, nil
}

func readTagFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.Errorf("tag file %s is empty", path)
}

func (d *DeployGoal) deployables() ([]deployable, error) {
	p := d.Project
	var files []deployable

	if p.PomFile != "" {
		if _, err := os.Stat(p.PomFile); err != nil {
			return nil, wrapExecution(err, "pom file is not readable")
		}
		files = append(files, deployable{file: p.PomFile, extension: "pom"})
	}

	isPom := p.packaging() == "pom"
	hasMain := false
	if !isPom && p.File != "" {
		if _, err := os.Stat(p.File); err == nil {
			files = append(files, deployable{file: p.File, extension: p.MainExtension()})
			hasMain = true
		}
	}

	for _, attached := range p.Attached {
		if _, err := os.Stat(attached.File); err != nil {
			return nil, wrapExecution(err, "attached artifact is not readable")
		}
		ext := attached.Extension
		if ext == "" {
			ext = strings.TrimPrefix(filepath.Ext(attached.File), ".")
		}
		files = append(files, deployable{file: attached.File, extension: ext, classifier: attached.Classifier})
	}

	if !isPom && !hasMain && len(p.Attached) == 0 {
		return nil, executionError("The packaging for this project did not assign a file to the build artifact")
	}

	seen := map[string]string{}
	for _, file := range files {
		coordinate := file.classifier + ":" + file.extension
		if other, ok := seen[coordinate]; ok {
			return nil, executionError("%s and %s have the same classifier '%s' and extension '%s'",
				other, file.file, file.classifier, file.extension)
		}
		seen[coordinate] = file.file
	}
	return files, nil
}

func (d *DeployGoal) component(files []deployable) (*nexus.Component, error) {
	p := d.Project
	builder := nexus.NewMavenComponentBuilder().
		WithGroupId(p.GroupId).
		WithArtifactId(p.ArtifactId).
		WithVersion(p.Version).
		WithCoordinates()
	if p.PomFile == "" {
		builder.WithPackaging(p.packaging())
	}

	var assets []*nexus.Asset
	closeAssets := func() {
		for _, asset := range assets {
			asset.Close()
		}
	}
	for _, file := range files {
		f, err := os.Open(file.file)
		if err != nil {
			closeAssets()
			return nil, wrapExecution(err, "failed to open asset")
		}
		asset, err := nexus.NewAsset(filepath.Base(file.file), f)
		if err != nil {
			f.Close()
			closeAssets()
			return nil, &ExecutionError{Err: err}
		}
		assets = append(assets, asset)
		builder.WithAsset(asset, file.extension, file.classifier)
	}

	component, err := builder.Build()
	if err != nil {
		closeAssets()
		return nil, &ExecutionError{Err: err}
	}
	return component, nil
}

// stage copies files into the work directory in repository layout and records them in the index.
func (d *DeployGoal) stage(tag string, files []deployable) (*Result, error) {
	p := d.Project
	pomFileName := p.ArtifactId + "-" + p.Version + ".pom"
	var infos []ArtifactInfo

	err := d.withStore(func(store stagingfs.Store) error {
		for _, file := range files {
			info := ArtifactInfo{
				Group:        p.GroupId,
				ArtifactId:   p.ArtifactId,
				Version:      p.Version,
				Tag:          tag,
				Classifier:   file.classifier,
				Packaging:    p.packaging(),
				Extension:    file.extension,
				PluginPrefix: p.PluginPrefix,
				Repository:   d.Repository,
			}
			if p.PomFile != "" {
				info.PomFileName = pomFileName
			}
			sum, err := stagingfs.CopyIn(store, file.file, info.Path(), d.BufferSize)
			if err != nil {
				return wrapExecution(err, "failed to stage artifact")
			}
			info.Sha256 = sum
			log.WithFields(log.Fields{"file": file.file, "path": info.Path()}).Info("staged artifact")
			infos = append(infos, info)
		}
		if err := appendIndex(store, d.indexName(), infos...); err != nil {
			return wrapExecution(err, "failed to update staging index")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := d.StoreTagInPropertiesFile(tag); err != nil {
		log.WithError(err).Error("failed to store tag in staging properties")
	}
	log.Infof("Staged %d files for later upload to '%s' with tag '%s'", len(infos), d.Repository, tag)
	return &Result{Tag: tag, Staged: len(infos)}, nil
}
