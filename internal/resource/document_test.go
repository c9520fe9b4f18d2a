package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDocumentTerraformJSON(t *testing.T) {
	tree := map[string]interface{}{
		"resource": map[string]interface{}{
			"aws_s3_bucket": map[string]interface{}{
				"data": map[string]interface{}{"acl": "public-read"},
				"assets": map[string]interface{}{
					"acl":  "private",
					"tags": map[string]interface{}{"Owner": "web"},
				},
			},
			"aws_security_group": map[string]interface{}{
				"ssh": map[string]interface{}{},
			},
		},
	}

	decls, err := FromDocument(tree, "main.tf.json")
	require.NoError(t, err)
	require.Len(t, decls, 3)

	assert.Equal(t, "aws_s3_bucket.assets", decls[0].ID())
	assert.Equal(t, "aws_s3_bucket.data", decls[1].ID())
	assert.Equal(t, "aws_security_group.ssh", decls[2].ID())
	assert.Equal(t, "main.tf.json", decls[0].Source())
	assert.True(t, decls[0].HasTag("owner"))
}

func TestFromDocumentHCLListForm(t *testing.T) {
	// shape produced by hcl.Unmarshal for resource "aws_db_instance" "main" { ... }
	tree := map[string]interface{}{
		"resource": []map[string]interface{}{
			{
				"aws_db_instance": []map[string]interface{}{
					{
						"main": []map[string]interface{}{
							{
								"publicly_accessible": true,
								"password":            "password123",
							},
						},
					},
				},
			},
		},
	}

	decls, err := FromDocument(tree, "db.tf")
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, KindManagedDatabase, decls[0].Kind())
	assert.True(t, decls[0].Get("publicly_accessible").True())
}

func TestFromDocumentDataSources(t *testing.T) {
	tree := map[string]interface{}{
		"data": map[string]interface{}{
			"aws_iam_policy_document": map[string]interface{}{
				"admin": map[string]interface{}{
					"statement": map[string]interface{}{
						"actions":   []interface{}{"*"},
						"resources": []interface{}{"*"},
					},
				},
			},
			"aws_caller_identity": map[string]interface{}{
				"current": map[string]interface{}{},
			},
		},
	}

	decls, err := FromDocument(tree, "iam.tf.json")
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, KindIdentityPolicy, decls[0].Kind())
}

func TestFromDocumentState(t *testing.T) {
	tree := map[string]interface{}{
		"version": 4,
		"resources": []interface{}{
			map[string]interface{}{
				"mode": "managed",
				"type": "aws_ebs_volume",
				"name": "disk",
				"instances": []interface{}{
					map[string]interface{}{"index_key": 0, "attributes": map[string]interface{}{"encrypted": false}},
					map[string]interface{}{"index_key": 1, "attributes": map[string]interface{}{"encrypted": true}},
				},
			},
			map[string]interface{}{
				"mode":      "data",
				"type":      "aws_ami",
				"name":      "ubuntu",
				"instances": []interface{}{map[string]interface{}{"attributes": map[string]interface{}{}}},
			},
		},
	}

	decls, err := FromDocument(tree, "terraform.tfstate")
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "disk[0]", decls[0].Name())
	assert.Equal(t, "disk[1]", decls[1].Name())
	assert.True(t, decls[1].Get("encrypted").True())
}

func TestFromDocumentRecords(t *testing.T) {
	single := map[string]interface{}{
		"kind":       "storage-bucket",
		"name":       "reports",
		"attributes": map[string]interface{}{"acl": "private"},
		"tags":       map[string]interface{}{"Environment": "dev"},
	}

	decls, err := FromDocument(single, "reports.yaml")
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, KindStorageBucket, decls[0].Kind())
	assert.Equal(t, map[string]string{"Environment": "dev"}, decls[0].Tags())

	list := map[string]interface{}{
		"resources": []interface{}{single, single},
	}
	decls, err = FromDocument(list, "reports.yaml")
	require.NoError(t, err)
	assert.Len(t, decls, 2)
}

func TestFromDocumentUnrecognized(t *testing.T) {
	_, err := FromDocument(map[string]interface{}{"variable": map[string]interface{}{}}, "vars.tf")
	assert.ErrorIs(t, err, ErrUnrecognizedDocument)

	_, err = FromDocument(map[string]interface{}{"resources": "nope"}, "bad.json")
	assert.ErrorIs(t, err, ErrUnrecognizedDocument)
}
