/*
Package glm fits generalized linear models.  The supported families
are Gaussian, binomial, Poisson, quasi-Poisson, gamma, inverse
Gaussian, negative binomial, and Tweedie.  Models can be fit by IRLS,
gradient optimization, or coordinate descent, with optional L1
(lasso) and L2 (ridge) penalties.

The data are provided to the models as a statmodel.Dataset.
*/

package glm
