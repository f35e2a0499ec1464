package staging

import (
	"context"
	"path"
	"sort"

	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/stagingfs"
)

// UploadGoal uploads everything DeployGoal staged with Defer set, one component per coordinate.
type UploadGoal struct {
	Goal
	// Repository overrides the repository recorded in the index.
	Repository string
	Tag        string
	// ArtifactId and Version feed the generated tag when Tag is empty.
	ArtifactId string
	Version    string
}

type componentGroup struct {
	key       componentKey
	artifacts []ArtifactInfo
}

func (u *UploadGoal) Execute(ctx context.Context) (*Result, error) {
	var result *Result
	err := u.withStore(func(store stagingfs.Store) error {
		artifacts := readIndex(store, u.indexName())
		log.Infof("Located %d stored artifacts", len(artifacts))
		groups := groupByComponent(artifacts, u.Repository)

		if err := u.failIfOffline(); err != nil {
			return err
		}
		if err := stagingfs.CheckWritable(store, ""); err != nil {
			return wrapExecution(err, "Upload failed: staging directory points to an existing file but is not a directory or is not writable!")
		}
		if len(groups) == 0 {
			log.Info("Nothing staged to upload")
			result = &Result{Tag: u.Tag}
			return nil
		}
		client, err := u.Client()
		if err != nil {
			return err
		}
		tag := u.resolveTag(artifacts)
		if err := u.ensureTag(ctx, client, tag); err != nil {
			return err
		}

		log.Infof("Uploading %d components with tag '%s'", len(groups), tag)
		uploaded := 0
		for _, group := range groups {
			repository := group.key.repository
			if repository == "" {
				return executionError("no repository recorded for %s:%s:%s and the parameter 'repository' is not set",
					group.key.group, group.key.artifactId, group.key.version)
			}
			ok, err := u.uploadGroup(ctx, client, store, repository, tag, group)
			if err != nil {
				return err
			}
			if ok {
				uploaded++
			}
		}
		result = &Result{Tag: tag, Uploaded: uploaded}
		return nil
	})
	return result, err
}

func (u *UploadGoal) resolveTag(artifacts []ArtifactInfo) string {
	if u.Tag != "" {
		return u.Tag
	}
	artifactId, version := u.ArtifactId, u.Version
	if artifactId == "" && len(artifacts) > 0 {
		artifactId, version = artifacts[0].ArtifactId, artifacts[0].Version
	}
	tag := u.TagGenerator.Generate(artifactId, version)
	log.Debugf("No tag was provided; using generated tag '%s'", tag)
	return tag
}

// groupByComponent keeps the order in which components first appear in the index.
// A non-empty repository replaces the recorded one before grouping.
func groupByComponent(artifacts []ArtifactInfo, repository string) []*componentGroup {
	var groups []*componentGroup
	byKey := map[componentKey]*componentGroup{}
	for _, info := range artifacts {
		if repository != "" {
			info.Repository = repository
		}
		key := info.key()
		group, ok := byKey[key]
		if !ok {
			group = &componentGroup{key: key}
			byKey[key] = group
			groups = append(groups, group)
		}
		group.artifacts = append(group.artifacts, info)
	}
	return groups
}

// uploadGroup uploads one component; it reports false when none of its files were found.
func (u *UploadGoal) uploadGroup(ctx context.Context, client nexus.RepositoryManager, store stagingfs.Store, repository, tag string, group *componentGroup) (bool, error) {
	component := nexus.NewComponent(nexus.MavenFormat)
	defer component.Close()

	attributes := map[string]string{
		nexus.MavenAttrVersion:    group.key.version,
		nexus.MavenAttrGroupId:    group.key.group,
		nexus.MavenAttrArtifactId: group.key.artifactId,
	}
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := component.AddAttribute(name, attributes[name]); err != nil {
			return false, &ExecutionError{Err: err}
		}
	}

	for _, info := range group.artifacts {
		assetPath := info.Path()
		exists, err := stagingfs.Exists(store, assetPath)
		if err != nil {
			return false, wrapExecution(err, "failed to check staged asset")
		}
		if !exists {
			log.Warnf("Skipping asset as file not found: %s", path.Join(store.Location(), assetPath))
			continue
		}
		if info.Sha256 != "" {
			sum, err := stagingfs.SHA256(store, assetPath)
			if err != nil {
				return false, wrapExecution(err, "failed to checksum staged asset")
			}
			if sum != info.Sha256 {
				return false, executionError("staged asset %s does not match its recorded sha256", assetPath)
			}
		}
		log.Infof("Artifact: %s:%s:%s:%s:%s", info.Group, info.ArtifactId, info.Extension, info.Classifier, info.Version)
		data, err := store.Open(assetPath)
		if err != nil {
			return false, wrapExecution(err, "failed to open staged asset")
		}
		asset, err := nexus.NewAsset(path.Base(assetPath), data)
		if err == nil {
			err = asset.AddAttribute(nexus.MavenAssetAttrExtension, info.Extension)
		}
		if err == nil && info.Classifier != "" {
			err = asset.AddAttribute(nexus.MavenAssetAttrClassifier, info.Classifier)
		}
		if err == nil {
			err = component.AddAsset(asset)
		}
		if err != nil {
			data.Close()
			return false, &ExecutionError{Err: err}
		}
	}

	if len(component.Assets) == 0 {
		log.Warnf("Skipping component %s:%s:%s as none of its files were found", group.key.group, group.key.artifactId, group.key.version)
		return false, nil
	}
	if err := client.Upload(ctx, repository, component, tag); err != nil {
		log.WithError(err).Warn("Exception uploading component")
		return false, &ExecutionError{Err: err}
	}
	return true, nil
}
